package metrics

import "go.uber.org/fx"

var Module = fx.Provide(
	newMetricsProvider,
	newHandler,
)

// newHandler depends on MetricsProvider so the prometheus exporter is
// installed before any meter is captured
func newHandler(_ MetricsProvider) Handler {
	return NewHandler(HandlerOptions{})
}
