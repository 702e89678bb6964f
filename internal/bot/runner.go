// Package bot wires one notification pass: load the watermark, resolve the
// community boundary, filter new node events down to local merchants,
// publish one message each and commit the run's start instant.
package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"btcmap-bot/internal/btcmap"
	"btcmap-bot/internal/geofence"
	"btcmap-bot/internal/metrics"
	"btcmap-bot/internal/model"
	"btcmap-bot/internal/notify"
	"btcmap-bot/internal/store"
)

var (
	ErrLoadWatermark   = errors.New("load watermark")
	ErrCommitWatermark = errors.New("commit watermark")
)

// API is the subset of the BTC Map client a run needs.
type API interface {
	Community(ctx context.Context, id string) (model.Community, error)
	EventsSince(ctx context.Context, since time.Time) ([]model.ChangeEvent, error)
	Element(ctx context.Context, elementID string) (model.Element, error)
}

// Sender publishes a message and never reports failure.
type Sender interface {
	Send(ctx context.Context, message string)
}

type Result struct {
	Community string // display name
	Since     time.Time
	Started   time.Time
	Events    int
	Relevant  int
	Local     int
	Messages  int
}

type Runner struct {
	api     API
	store   store.Store
	sender  Sender
	logger  log.FieldLogger
	metrics *metrics.Recorder
	now     func() time.Time
	out     io.Writer
}

type Option func(*Runner)

func WithLogger(l log.FieldLogger) Option    { return func(r *Runner) { r.logger = l } }
func WithMetrics(m *metrics.Recorder) Option { return func(r *Runner) { r.metrics = m } }
func WithClock(now func() time.Time) Option  { return func(r *Runner) { r.now = now } }
func WithReportWriter(w io.Writer) Option    { return func(r *Runner) { r.out = w } }

func NewRunner(api API, st store.Store, sender Sender, opts ...Option) *Runner {
	r := &Runner{
		api:     api,
		store:   st,
		sender:  sender,
		logger:  log.StandardLogger(),
		metrics: metrics.New(),
		now:     time.Now,
		out:     io.Discard,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run executes one pass for communityID. The watermark is committed only when
// every fetch succeeded and ctx is still live; publish failures never prevent the commit.
func (r *Runner) Run(ctx context.Context, communityID string) (Result, error) {
	started := r.now().UTC()
	res := Result{Community: communityID, Started: started}
	logger := r.logger.WithFields(log.Fields{
		"run_id":    uuid.NewString(),
		"community": communityID,
	})
	defer func() { r.metrics.RunFinished(r.now().Sub(started)) }()

	since, err := r.store.Load(ctx)
	if err != nil {
		return res, fmt.Errorf("%w: %w", ErrLoadWatermark, err)
	}
	res.Since = since
	logger.WithField("since", since.Format(time.RFC3339)).Debug("watermark loaded")

	com, err := r.api.Community(ctx, communityID)
	if err != nil {
		return res, err
	}
	res.Community = com.Name
	boundary, err := geofence.Parse(com.GeoJSON)
	if err != nil {
		return res, fmt.Errorf("%w: %q: %w", btcmap.ErrNoBoundaryData, communityID, err)
	}
	logger.WithField("polygons", boundary.Polygons()).Debug("boundary resolved")

	events, err := r.api.EventsSince(ctx, since)
	if err != nil {
		return res, err
	}
	res.Events = len(events)
	r.metrics.EventsFetched(len(events))

	relevant := FilterEvents(events, since)
	res.Relevant = len(relevant)
	r.metrics.EventsRelevant(len(relevant))
	logger.Debugf("%d of %d events are new nodes", len(relevant), len(events))

	elements := make([]model.Element, 0, len(relevant))
	for _, e := range relevant {
		el, err := r.api.Element(ctx, e.ElementID)
		if err != nil {
			return res, err
		}
		elements = append(elements, el)
	}

	local := FilterLocal(elements, boundary)
	res.Local = len(local)
	r.metrics.ElementsLocal(len(local))

	fmt.Fprintf(r.out, "Found %d new local businesses in %s since %s\n",
		len(local), com.Name, since.Format(time.RFC3339))
	logger.WithFields(log.Fields{
		"events":   res.Events,
		"relevant": res.Relevant,
		"local":    res.Local,
	}).Info("new local businesses found")

	for _, el := range local {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		r.sender.Send(ctx, notify.Format(com.Name, el))
		res.Messages++
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	if err := r.store.Commit(ctx, started); err != nil {
		return res, fmt.Errorf("%w: %w", ErrCommitWatermark, err)
	}
	r.metrics.Succeeded(started)
	logger.WithField("watermark", store.Format(started)).Info("watermark committed")
	return res, nil
}
