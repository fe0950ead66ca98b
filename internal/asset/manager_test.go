package asset

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ent0n29/musebot/internal/reliability"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	return m
}

func TestMaterializeCreatesUniqueFiles(t *testing.T) {
	m := newTestManager(t)

	a, err := m.Materialize(context.Background(), KindInputSample, ".ogg", strings.NewReader("audio-bytes"))
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	b, err := m.Materialize(context.Background(), KindInputSample, ".ogg", strings.NewReader("other"))
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	if a.Path == b.Path {
		t.Fatalf("paths should be collision-free, both %q", a.Path)
	}

	data, err := os.ReadFile(a.Path)
	if err != nil {
		t.Fatalf("reading asset: %v", err)
	}
	if string(data) != "audio-bytes" {
		t.Fatalf("asset content = %q", data)
	}
}

func TestMaterializeFailureLeavesNoFile(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Materialize(context.Background(), KindInputPhoto, ".jpg", failingReader{})
	if err == nil {
		t.Fatalf("Materialize() should fail")
	}
	if got := reliability.Classify(err); got != reliability.KindAssetIO {
		t.Fatalf("failure kind = %q, want %q", got, reliability.KindAssetIO)
	}

	files, _ := os.ReadDir(m.Dir())
	if len(files) != 0 {
		t.Fatalf("failed materialize left %d files behind", len(files))
	}
}

func TestReleaseToleratesMissingFile(t *testing.T) {
	m := newTestManager(t)

	a, err := m.Save(KindGeneratedOutput, ".mp3", []byte("mp3"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	m.Release(a)
	if _, err := os.Stat(a.Path); !os.IsNotExist(err) {
		t.Fatalf("asset should be deleted, stat err = %v", err)
	}

	// Releasing again must be a silent success.
	m.Release(a)
	m.ReleasePath("")
}

func TestScopeReleasesExactlyOnce(t *testing.T) {
	m := newTestManager(t)

	a, err := m.Save(KindInputSample, ".mp3", []byte("sample"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	out, err := m.Save(KindGeneratedOutput, ".mp3", []byte("output"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	scope := m.NewScope()
	scope.Track(a)
	scope.TrackPath(out.Kind, out.Path)
	scope.Close()
	scope.Close()

	for _, p := range []string{a.Path, out.Path} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Fatalf("%s should be gone after scope close", p)
		}
	}
}

func TestScopeTrackAfterCloseReleasesImmediately(t *testing.T) {
	m := newTestManager(t)
	scope := m.NewScope()
	scope.Close()

	a, err := m.Save(KindGeneratedOutput, ".mp3", []byte("late"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	scope.Track(a)
	if _, err := os.Stat(a.Path); !os.IsNotExist(err) {
		t.Fatalf("late-tracked asset should be released immediately")
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("read failed") }
