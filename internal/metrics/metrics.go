package metrics

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	dto "github.com/prometheus/client_model/go"
)

const namespace = "btcmap_bot"

// Recorder holds the counters of a single run on a private registry.
type Recorder struct {
	reg *prometheus.Registry

	eventsFetched  prometheus.Counter
	eventsRelevant prometheus.Counter
	elementsLocal  prometheus.Counter
	messages       *prometheus.CounterVec
	runDuration    prometheus.Gauge
	lastSuccessTS  prometheus.Gauge
}

func New() *Recorder {
	r := &Recorder{reg: prometheus.NewRegistry()}
	r.eventsFetched = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_fetched_total",
		Help:      "Events returned by the feed",
	})
	r.eventsRelevant = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_relevant_total",
		Help:      "Node create events newer than the watermark",
	})
	r.elementsLocal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "elements_local_total",
		Help:      "Elements inside the community boundary",
	})
	r.messages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_total",
		Help:      "Publish attempts by final status",
	}, []string{"status"})
	r.runDuration = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "run_duration_seconds",
		Help:      "Wall time of the last run",
	})
	r.lastSuccessTS = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix time of the last run that committed its watermark",
	})
	r.reg.MustRegister(
		r.eventsFetched, r.eventsRelevant, r.elementsLocal,
		r.messages, r.runDuration, r.lastSuccessTS,
	)
	return r
}

func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

func (r *Recorder) EventsFetched(n int)  { r.eventsFetched.Add(float64(n)) }
func (r *Recorder) EventsRelevant(n int) { r.eventsRelevant.Add(float64(n)) }
func (r *Recorder) ElementsLocal(n int)  { r.elementsLocal.Add(float64(n)) }

// Message counts one published message; ok=false means every attempt failed.
func (r *Recorder) Message(ok bool) {
	status := "ok"
	if !ok {
		status = "error"
	}
	r.messages.WithLabelValues(status).Inc()
}

func (r *Recorder) RunFinished(d time.Duration) { r.runDuration.Set(d.Seconds()) }

func (r *Recorder) Succeeded(at time.Time) { r.lastSuccessTS.Set(float64(at.Unix())) }

// Push sends the registry to a Prometheus Pushgateway under job.
func (r *Recorder) Push(ctx context.Context, url, job, community string) error {
	p := push.New(url, job).Gatherer(r.reg)
	if community != "" {
		p = p.Grouping("community", community)
	}
	return p.PushContext(ctx)
}

// Dump returns a one-line, sorted snapshot of all samples (for logging).
func (r *Recorder) Dump() string {
	mfs, err := r.reg.Gather()
	if err != nil {
		return "gather: " + err.Error()
	}
	var out []string
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			out = append(out, fmt.Sprintf("%s%s %g", mf.GetName(), labelString(m.GetLabel()), sampleValue(m)))
		}
	}
	sort.Strings(out)
	return strings.Join(out, " ")
}

func labelString(pairs []*dto.LabelPair) string {
	if len(pairs) == 0 {
		return ""
	}
	parts := make([]string, 0, len(pairs))
	for _, lp := range pairs {
		parts = append(parts, lp.GetName()+"="+lp.GetValue())
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func sampleValue(m *dto.Metric) float64 {
	switch {
	case m.Counter != nil:
		return m.GetCounter().GetValue()
	case m.Gauge != nil:
		return m.GetGauge().GetValue()
	case m.Untyped != nil:
		return m.GetUntyped().GetValue()
	}
	return 0
}
