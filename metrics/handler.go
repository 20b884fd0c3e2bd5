package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type (
	// Handler records operation metrics. Implementations must be safe for
	// concurrent use.
	Handler interface {
		Counter(name string) Counter
		Timer(name string) Timer
	}

	Counter interface {
		Inc(delta int64)
	}

	Timer interface {
		Record(d time.Duration)
	}

	// HandlerOptions contains configuration options for NewHandler
	HandlerOptions struct {
		// Meter overrides the global otel meter
		Meter metric.Meter

		// InitialAttributes are attached to every recorded metric
		InitialAttributes attribute.Set
	}

	otelHandler struct {
		meter      metric.Meter
		attributes attribute.Set
	}

	otelCounter struct {
		counter    metric.Int64Counter
		attributes attribute.Set
	}

	otelTimer struct {
		histogram  metric.Float64Histogram
		attributes attribute.Set
	}

	nopHandler struct{}
	nopCounter struct{}
	nopTimer   struct{}
)

// NopHandler discards all metrics
var NopHandler Handler = nopHandler{}

// NewHandler creates a Handler backed by the otel meter provider
func NewHandler(options HandlerOptions) Handler {
	meter := options.Meter
	if meter == nil {
		meter = otel.GetMeterProvider().Meter("multi-keyring")
	}

	return &otelHandler{
		meter:      meter,
		attributes: options.InitialAttributes,
	}
}

func (h *otelHandler) Counter(name string) Counter {
	counter, err := h.meter.Int64Counter(name)
	if err != nil {
		return nopCounter{}
	}
	return &otelCounter{counter: counter, attributes: h.attributes}
}

func (h *otelHandler) Timer(name string) Timer {
	histogram, err := h.meter.Float64Histogram(name, metric.WithUnit("s"))
	if err != nil {
		return nopTimer{}
	}
	return &otelTimer{histogram: histogram, attributes: h.attributes}
}

func (c *otelCounter) Inc(delta int64) {
	c.counter.Add(context.Background(), delta, metric.WithAttributeSet(c.attributes))
}

func (t *otelTimer) Record(d time.Duration) {
	t.histogram.Record(context.Background(), d.Seconds(), metric.WithAttributeSet(t.attributes))
}

func (nopHandler) Counter(string) Counter { return nopCounter{} }
func (nopHandler) Timer(string) Timer     { return nopTimer{} }
func (nopCounter) Inc(int64)              {}
func (nopTimer) Record(time.Duration)     {}
