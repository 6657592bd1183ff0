package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/alfozan/insights/internal/shared"
)

// ErrEmpty is returned by Slot.Load when nothing is stored.
var ErrEmpty = errors.New("session: slot empty")

// Slot is one named persisted value. Remove on an empty slot is a no-op.
type Slot interface {
	Load(ctx context.Context) ([]byte, error)
	Put(ctx context.Context, data []byte) error
	Remove(ctx context.Context) error
}

// MemorySlot keeps the value in process memory.
type MemorySlot struct {
	mu   sync.Mutex
	data []byte
}

// Load returns a copy of the stored bytes.
func (s *MemorySlot) Load(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return nil, ErrEmpty
	}
	return append([]byte(nil), s.data...), nil
}

// Put replaces the stored bytes.
func (s *MemorySlot) Put(ctx context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = append([]byte(nil), data...)
	return nil
}

// Remove clears the slot.
func (s *MemorySlot) Remove(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = nil
	return nil
}

// FileSlot stores the value in a single file, replaced atomically.
type FileSlot struct {
	path string
}

// NewFileSlot returns a slot backed by path.
func NewFileSlot(path string) *FileSlot {
	return &FileSlot{path: path}
}

// Load reads the file.
func (s *FileSlot) Load(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrEmpty
		}
		return nil, fmt.Errorf("session: read %s: %w", s.path, err)
	}
	return data, nil
}

// Put writes to a temporary file and renames it over the slot.
func (s *FileSlot) Put(ctx context.Context, data []byte) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("session: mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("session: temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("session: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("session: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("session: rename: %w", err)
	}
	return nil
}

// Remove deletes the file if present.
func (s *FileSlot) Remove(ctx context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("session: remove: %w", err)
	}
	return nil
}

// DeviceSlot keeps the value under one key of a cookie-bound device session.
// The session manager persists it when the response is committed.
type DeviceSlot struct {
	sess *shared.Session
	key  string
}

// NewDeviceSlot returns a slot stored under key in sess.
func NewDeviceSlot(sess *shared.Session, key string) *DeviceSlot {
	return &DeviceSlot{sess: sess, key: key}
}

// Load reads the key.
func (s *DeviceSlot) Load(ctx context.Context) ([]byte, error) {
	if s.sess == nil {
		return nil, ErrEmpty
	}
	v := s.sess.Get(s.key)
	if v == "" {
		return nil, ErrEmpty
	}
	return []byte(v), nil
}

// Put sets the key.
func (s *DeviceSlot) Put(ctx context.Context, data []byte) error {
	if s.sess == nil {
		return errors.New("session: no device session")
	}
	s.sess.Set(s.key, string(data))
	return nil
}

// Remove deletes the key.
func (s *DeviceSlot) Remove(ctx context.Context) error {
	if s.sess == nil {
		return nil
	}
	s.sess.Delete(s.key)
	return nil
}

var (
	_ Slot = (*MemorySlot)(nil)
	_ Slot = (*FileSlot)(nil)
	_ Slot = (*DeviceSlot)(nil)
)
