package cipher

import (
	"go.uber.org/fx"

	"keyring-sa/multi-keyring/keyring"
	"keyring-sa/multi-keyring/metrics"
)

var Module = fx.Provide(
	newConfiguredCipher,
)

func newConfiguredCipher(kr keyring.Keyring, metricsHandler metrics.Handler) *Cipher {
	return NewCipher(kr, metricsHandler)
}
