package keyring

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"keyring-sa/multi-keyring/config"
	"keyring-sa/multi-keyring/metrics"
)

var Module = fx.Provide(
	newConfiguredKeyring,
)

func newConfiguredKeyring(configProvider config.ConfigProvider, logger *zap.Logger, metricsHandler metrics.Handler) (Keyring, error) {
	builder := NewBuilder(logger, metricsHandler)
	return builder.Build(context.Background(), configProvider.GetConfig())
}
