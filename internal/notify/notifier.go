// Package notify formats merchant announcements and hands them to a Publisher.
package notify

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"btcmap-bot/internal/metrics"
	"btcmap-bot/internal/model"
	"btcmap-bot/internal/util"
)

const merchantURL = "https://btcmap.org/merchant/"

// Format renders the announcement for one local element. A missing name is
// rendered as an empty string.
func Format(communityName string, el model.Element) string {
	return fmt.Sprintf("A new business accepting Bitcoin in %s! %s %s%s",
		communityName, el.DisplayName(), merchantURL, el.ID)
}

// Notifier sends messages fire-and-forget: failures are logged and counted,
// never returned.
type Notifier struct {
	pub        Publisher
	logger     log.FieldLogger
	metrics    *metrics.Recorder
	attempts   int
	backoff    time.Duration
	maxBackoff time.Duration
}

type Option func(*Notifier)

// WithRetry makes Send try up to attempts times with exponential backoff.
func WithRetry(attempts int, backoff, maxBackoff time.Duration) Option {
	return func(n *Notifier) {
		n.attempts = attempts
		n.backoff = backoff
		n.maxBackoff = maxBackoff
	}
}

func WithMetrics(r *metrics.Recorder) Option {
	return func(n *Notifier) { n.metrics = r }
}

func New(pub Publisher, logger log.FieldLogger, opts ...Option) *Notifier {
	n := &Notifier{pub: pub, logger: logger, attempts: 1, backoff: time.Second, maxBackoff: 5 * time.Second}
	for _, o := range opts {
		o(n)
	}
	if n.logger == nil {
		n.logger = log.StandardLogger()
	}
	return n
}

// Send publishes message. It never fails from the caller's point of view.
func (n *Notifier) Send(ctx context.Context, message string) {
	tries := 0
	err := util.Retry(ctx, n.attempts, n.backoff, n.maxBackoff, func() error {
		tries++
		return n.pub.Publish(ctx, message)
	})
	if n.metrics != nil {
		n.metrics.Message(err == nil)
	}
	if err != nil {
		n.logger.WithFields(log.Fields{
			"publisher": n.pub.Name(),
			"attempts":  tries,
		}).WithError(err).Warn("publish failed, dropping message")
		return
	}
	n.logger.WithField("publisher", n.pub.Name()).Debugf("published: %s", message)
}
