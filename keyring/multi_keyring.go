package keyring

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"keyring-sa/multi-keyring/materials"
)

// MultiKeyringOptions contains configuration options for MultiKeyring
type MultiKeyringOptions struct {
	// Generator is the single keyring allowed to produce the plaintext data
	// key during encryption. Optional when the caller supplies the key.
	Generator Keyring

	// Children wrap the generated data key into additional EDKs on encrypt
	// and are fallback candidates on decrypt, in declared order.
	Children []Keyring

	// Logger receives diagnostics for member failures suppressed during
	// decryption. Defaults to a no-op logger.
	Logger *zap.Logger
}

// MultiKeyring combines a generator keyring and an ordered list of child
// keyrings into one logical keyring. It implements Keyring itself, so a
// MultiKeyring nests transparently as the generator or a child of another.
//
// The member set is fixed at construction; a MultiKeyring is immutable and
// safe to reuse across any number of independent operations.
type MultiKeyring struct {
	generator Keyring
	children  []Keyring
	logger    *zap.Logger
}

// NewMultiKeyring creates a multi keyring from a generator and/or children.
// At least one member is required.
func NewMultiKeyring(opts MultiKeyringOptions) (*MultiKeyring, error) {
	if opts.Generator == nil && len(opts.Children) == 0 {
		return nil, fmt.Errorf("%w: a multi keyring requires a generator or at least one child keyring", ErrInvalidKeyringConfig)
	}

	for i, child := range opts.Children {
		if child == nil {
			return nil, fmt.Errorf("%w: child keyring at index %d is nil", ErrInvalidKeyringConfig, i)
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	// Copy the children so later mutation of the caller's slice cannot
	// change the member set.
	children := make([]Keyring, len(opts.Children))
	copy(children, opts.Children)

	return &MultiKeyring{
		generator: opts.Generator,
		children:  children,
		logger:    logger,
	}, nil
}

// OnEncrypt delegates to the generator first, then to every child in declared
// order. Members run strictly sequentially: some providers are rate limited
// and a child may inspect the EDKs appended by earlier members.
func (m *MultiKeyring) OnEncrypt(ctx context.Context, em *materials.EncryptionMaterials) (*materials.EncryptionMaterials, error) {
	if m.generator != nil {
		var err error
		em, err = m.generator.OnEncrypt(ctx, em)
		if err != nil {
			return nil, fmt.Errorf("generator keyring failed: %w", err)
		}
		if !em.HasPlaintextDataKey() {
			return nil, fmt.Errorf("%w: generator keyring did not generate key material", ErrNoPlaintextDataKey)
		}
	} else if !em.HasPlaintextDataKey() {
		// Only a designated generator may create key material; a child-only
		// multi keyring cannot act as one.
		return nil, fmt.Errorf("%w: no generator configured and materials carry no key", ErrNoPlaintextDataKey)
	}

	for i, child := range m.children {
		var err error
		em, err = child.OnEncrypt(ctx, em)
		if err != nil {
			return nil, fmt.Errorf("child keyring %d failed: %w", i, err)
		}
	}

	return em, nil
}

// OnDecrypt tries the generator first (when configured), then each child in
// declared order, stopping at the first member that resolves the materials.
// Member failures are suppressed: the caller may have access through a later
// member, so one provider's error must not abort the search. When no member
// succeeds the materials are returned unresolved and the caller detects the
// failure via their validity check.
func (m *MultiKeyring) OnDecrypt(ctx context.Context, dm *materials.DecryptionMaterials, edks []materials.EncryptedDataKey) (*materials.DecryptionMaterials, error) {
	for _, member := range m.attemptOrder() {
		if dm.Valid() {
			// Resolved; skip the remaining members and any further
			// provider round-trips.
			return dm, nil
		}

		if _, err := member.OnDecrypt(ctx, dm, edks); err != nil {
			m.logger.Debug("multi keyring member failed to decrypt", zap.Error(err))
		}
	}

	return dm, nil
}

func (m *MultiKeyring) attemptOrder() []Keyring {
	if m.generator == nil {
		return m.children
	}
	return append([]Keyring{m.generator}, m.children...)
}
