package asset

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ent0n29/musebot/internal/reliability"
)

// Kind classifies a temporary artifact.
type Kind string

const (
	KindInputSample     Kind = "input_sample"
	KindInputPhoto      Kind = "input_photo"
	KindGeneratedOutput Kind = "generated_output"
)

// Asset is a filesystem-backed artifact owned by the workflow that created it.
type Asset struct {
	Path string
	Kind Kind
}

// Manager materializes remote resources into uniquely named local files and
// deletes them when their owning workflow terminates.
type Manager struct {
	dir string
	log zerolog.Logger
}

func NewManager(dir string, log zerolog.Logger) (*Manager, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create asset dir: %w", err)
	}
	return &Manager{dir: dir, log: log.With().Str("component", "asset").Logger()}, nil
}

// Dir returns the directory assets are stored under.
func (m *Manager) Dir() string { return m.dir }

// Materialize streams src into a collision-free local path. The partial file
// is removed if the copy fails, so a failed download never leaks.
func (m *Manager) Materialize(ctx context.Context, kind Kind, ext string, src io.Reader) (Asset, error) {
	if err := ctx.Err(); err != nil {
		return Asset{}, reliability.Mark(reliability.KindAssetIO, err)
	}

	a := Asset{Path: m.newPath(kind, ext), Kind: kind}
	f, err := os.Create(a.Path)
	if err != nil {
		return Asset{}, reliability.Mark(reliability.KindAssetIO, fmt.Errorf("create %s: %w", a.Path, err))
	}

	if _, err := io.Copy(f, src); err != nil {
		_ = f.Close()
		m.Release(a)
		return Asset{}, reliability.Mark(reliability.KindAssetIO, fmt.Errorf("write %s: %w", a.Path, err))
	}
	if err := f.Close(); err != nil {
		m.Release(a)
		return Asset{}, reliability.Mark(reliability.KindAssetIO, fmt.Errorf("close %s: %w", a.Path, err))
	}
	return a, nil
}

// Save stores an in-memory payload as a new asset.
func (m *Manager) Save(kind Kind, ext string, data []byte) (Asset, error) {
	a := Asset{Path: m.newPath(kind, ext), Kind: kind}
	if err := os.WriteFile(a.Path, data, 0o644); err != nil {
		return Asset{}, reliability.Mark(reliability.KindAssetIO, fmt.Errorf("write %s: %w", a.Path, err))
	}
	return a, nil
}

// Release deletes the asset's file. A file that is already gone counts as
// success; other deletion errors are logged and swallowed, never surfaced.
func (m *Manager) Release(a Asset) {
	m.ReleasePath(a.Path)
}

// ReleasePath releases by raw path, for paths recorded in session data.
func (m *Manager) ReleasePath(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		m.log.Warn().Err(err).Str("path", path).Msg("asset release failed")
	}
}

func (m *Manager) newPath(kind Kind, ext string) string {
	var prefix string
	switch kind {
	case KindInputSample:
		prefix = "sample"
	case KindInputPhoto:
		prefix = "photo"
	default:
		prefix = "output"
	}
	return filepath.Join(m.dir, fmt.Sprintf("%s_%s%s", prefix, uuid.NewString(), ext))
}

// Scope collects assets created during one workflow run and releases each of
// them exactly once, on success, failure and abandonment alike.
type Scope struct {
	mu     sync.Mutex
	m      *Manager
	assets []Asset
	closed bool
}

func (m *Manager) NewScope() *Scope {
	return &Scope{m: m}
}

// Track registers an asset for release when the scope closes.
func (s *Scope) Track(a Asset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.m.Release(a)
		return
	}
	s.assets = append(s.assets, a)
}

// TrackPath registers a raw path, as stored in session data.
func (s *Scope) TrackPath(kind Kind, path string) {
	if path == "" {
		return
	}
	s.Track(Asset{Path: path, Kind: kind})
}

// Close releases every tracked asset. Subsequent calls are no-ops.
func (s *Scope) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for _, a := range s.assets {
		s.m.Release(a)
	}
	s.assets = nil
}
