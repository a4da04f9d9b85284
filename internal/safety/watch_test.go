package safety

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/vedanta-labs/vaidya/internal/embedding"
)

func writeCatalogFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
}

func waitForConditionCount(t *testing.T, gate *Gate, want int) bool {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if gate.ConditionCount() == want {
			return true
		}
		time.Sleep(50 * time.Millisecond)
	}
	return false
}

func TestCatalogWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	writeCatalogFile(t, path, `version: 1
conditions:
  - name: cardiac_emergency
    description: crushing chest pain radiating to arm
`)

	embedder := embedding.NewMockEmbedder(8)
	catalog, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	gate, err := NewGate(context.Background(), embedder, catalog, 0.65, zap.NewNop())
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watcher := NewCatalogWatcher(path, gate, zap.NewNop())
	if err := watcher.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer watcher.Stop()

	writeCatalogFile(t, path, `version: 2
conditions:
  - name: cardiac_emergency
    description: crushing chest pain radiating to arm
  - name: acute_stroke
    description: sudden facial droop and slurred speech
`)
	if !waitForConditionCount(t, gate, 2) {
		t.Fatalf("gate not reloaded, condition count = %d", gate.ConditionCount())
	}
}

func TestCatalogWatcher_KeepsPreviousOnBadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	writeCatalogFile(t, path, `version: 1
conditions:
  - name: cardiac_emergency
    description: crushing chest pain radiating to arm
`)

	embedder := embedding.NewMockEmbedder(8)
	catalog, _ := LoadCatalog(path)
	gate, err := NewGate(context.Background(), embedder, catalog, 0.65, zap.NewNop())
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watcher := NewCatalogWatcher(path, gate, zap.NewNop())
	if err := watcher.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer watcher.Stop()

	writeCatalogFile(t, path, "conditions: []\n")

	// Give the debounce and reload a chance to run, then confirm the old
	// catalog is still in place.
	time.Sleep(2 * reloadDebounce)
	if gate.ConditionCount() != 1 {
		t.Errorf("bad catalog should be rejected, condition count = %d", gate.ConditionCount())
	}
}

func TestCatalogWatcher_StopIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	writeCatalogFile(t, path, `conditions:
  - name: x
    description: y
`)
	embedder := embedding.NewMockEmbedder(8)
	catalog, _ := LoadCatalog(path)
	gate, _ := NewGate(context.Background(), embedder, catalog, 0.65, zap.NewNop())

	watcher := NewCatalogWatcher(path, gate, zap.NewNop())
	if err := watcher.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	watcher.Stop()
	watcher.Stop()
}
