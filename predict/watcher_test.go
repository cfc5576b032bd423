package predict

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"symptomdx/ml"
)

func TestWatcherReloadsOnMetadataSwap(t *testing.T) {
	modelsDir, severityPath := trainArtifacts(t)
	p := New(Config{ModelsDir: modelsDir, SeverityPath: severityPath}, zap.NewNop())
	if p.Ready() {
		t.Fatal("predictor must start unloaded")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- NewWatcher(p, modelsDir, zap.NewNop()).Run(ctx) }()

	// Give the watcher a moment to register before touching the file.
	time.Sleep(200 * time.Millisecond)

	metaPath := filepath.Join(modelsDir, ml.MetadataFile)
	content, err := os.ReadFile(metaPath)
	if err != nil {
		t.Fatalf("read metadata: %v", err)
	}
	if err := os.WriteFile(metaPath, content, 0o644); err != nil {
		t.Fatalf("rewrite metadata: %v", err)
	}

	deadline := time.After(5 * time.Second)
	for !p.Ready() {
		select {
		case <-deadline:
			t.Fatal("watcher did not reload within the deadline")
		case <-time.After(50 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop on cancel")
	}
}

func TestWatcherStartsBeforeFirstTrainingRun(t *testing.T) {
	dir := t.TempDir()
	modelsDir := filepath.Join(dir, "models") // does not exist yet
	severityPath := filepath.Join(dir, "severity.csv")
	writeSeverityTable(t, severityPath)

	p := New(Config{ModelsDir: modelsDir, SeverityPath: severityPath}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- NewWatcher(p, modelsDir, zap.NewNop()).Run(ctx) }()

	time.Sleep(200 * time.Millisecond)
	select {
	case err := <-done:
		t.Fatalf("watcher exited before any artifacts existed: %v", err)
	default:
	}

	trainModelsInto(t, modelsDir)

	deadline := time.After(5 * time.Second)
	for !p.Ready() {
		select {
		case <-deadline:
			t.Fatal("first training run did not trigger a reload")
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func TestWatcherIgnoresUnrelatedFiles(t *testing.T) {
	modelsDir, severityPath := trainArtifacts(t)
	p := New(Config{ModelsDir: modelsDir, SeverityPath: severityPath}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go NewWatcher(p, modelsDir, zap.NewNop()).Run(ctx)

	time.Sleep(200 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(modelsDir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write unrelated file: %v", err)
	}

	time.Sleep(2 * reloadDebounce)
	if p.Ready() {
		t.Fatal("unrelated file must not trigger a reload")
	}
}
