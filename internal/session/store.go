// Package session persists the single authenticated identity of a device.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alfozan/insights/internal/auth"
)

// SlotName is the key the identity is stored under.
const SlotName = "alfozan_user"

// Store reads and writes the identity record in one slot.
type Store struct {
	slot   Slot
	logger *slog.Logger
}

// NewStore wraps slot.
func NewStore(slot Slot, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{slot: slot, logger: logger}
}

// Restore returns the persisted identity. A missing record yields ok=false.
// A record that does not decode into a valid identity is removed and also
// yields ok=false. Only slot I/O failures are returned as errors.
func (s *Store) Restore(ctx context.Context) (auth.Identity, bool, error) {
	raw, err := s.slot.Load(ctx)
	if err != nil {
		if errors.Is(err, ErrEmpty) {
			return auth.Identity{}, false, nil
		}
		return auth.Identity{}, false, err
	}
	var identity auth.Identity
	if err := json.Unmarshal(raw, &identity); err != nil {
		s.discard(ctx, err)
		return auth.Identity{}, false, nil
	}
	if err := identity.Validate(); err != nil {
		s.discard(ctx, err)
		return auth.Identity{}, false, nil
	}
	return identity, true, nil
}

// Save overwrites the slot with identity.
func (s *Store) Save(ctx context.Context, identity auth.Identity) error {
	data, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("session: encode identity: %w", err)
	}
	return s.slot.Put(ctx, data)
}

// Clear removes the record. Clearing an empty slot is a no-op.
func (s *Store) Clear(ctx context.Context) error {
	return s.slot.Remove(ctx)
}

func (s *Store) discard(ctx context.Context, cause error) {
	s.logger.Warn("discard corrupt session record", slog.String("slot", SlotName), slog.Any("error", cause))
	if err := s.slot.Remove(ctx); err != nil {
		s.logger.Warn("clear corrupt session record", slog.Any("error", err))
	}
}

var _ auth.SessionStore = (*Store)(nil)
