package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func TestDebouncerFoldsBurst(t *testing.T) {
	input := make(chan ChangeEvent)
	d := NewDebouncer(input, 20*time.Millisecond, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	input <- ChangeEvent{Type: ChangeTypeRemove, Path: "s.txt", Count: 1}
	input <- ChangeEvent{Type: ChangeTypeCreate, Path: "s.txt", Count: 1}
	input <- ChangeEvent{Type: ChangeTypeWrite, Path: "s.txt", Count: 1}

	select {
	case event := <-d.Output():
		if event.Count != 3 {
			t.Errorf("Expected 3 folded events, got %d", event.Count)
		}
		if event.Type != ChangeTypeWrite {
			t.Errorf("Expected last type to win, got %s", event.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for debounced event")
	}

	select {
	case event := <-d.Output():
		t.Errorf("Unexpected extra event %+v", event)
	case <-time.After(60 * time.Millisecond):
	}
}

func TestDebouncerMaxWait(t *testing.T) {
	input := make(chan ChangeEvent)
	d := NewDebouncer(input, time.Hour, 30*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	input <- ChangeEvent{Type: ChangeTypeWrite, Count: 1}

	select {
	case <-d.Output():
	case <-time.After(time.Second):
		t.Fatal("Expected flush at max wait despite long quiet period")
	}
}

func TestDebouncerFlushesOnClose(t *testing.T) {
	input := make(chan ChangeEvent, 1)
	d := NewDebouncer(input, time.Hour, time.Hour)
	d.Start(context.Background())

	input <- ChangeEvent{Type: ChangeTypeWrite, Count: 1}
	close(input)

	event, ok := <-d.Output()
	if !ok || event.Count != 1 {
		t.Errorf("Expected pending event on close, got %+v (ok=%v)", event, ok)
	}
	if _, ok := <-d.Output(); ok {
		t.Error("Expected output to be closed")
	}
}

func TestAnalyzeChanges(t *testing.T) {
	if AnalyzeChanges(ChangeEvent{Type: ChangeTypeRemove}).Recompute {
		t.Error("Removal should not trigger recompute")
	}
	if !AnalyzeChanges(ChangeEvent{Type: ChangeTypeWrite}).Recompute {
		t.Error("Write should trigger recompute")
	}
	if !AnalyzeChanges(ChangeEvent{Type: ChangeTypeCreate}).Recompute {
		t.Error("Create should trigger recompute")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		op       fsnotify.Op
		want     ChangeType
		relevant bool
	}{
		{fsnotify.Write, ChangeTypeWrite, true},
		{fsnotify.Create, ChangeTypeCreate, true},
		{fsnotify.Remove, ChangeTypeRemove, true},
		{fsnotify.Rename, ChangeTypeRemove, true},
		{fsnotify.Chmod, 0, false},
	}

	for _, tt := range tests {
		got, relevant := classify(tt.op)
		if got != tt.want || relevant != tt.relevant {
			t.Errorf("classify(%s) = %s, %v; want %s, %v", tt.op, got, relevant, tt.want, tt.relevant)
		}
	}
}

func TestFileWatcherSeesWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "services.txt")
	if err := os.WriteFile(path, []byte("a=\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	fw, err := NewFileWatcher(path)
	if err != nil {
		t.Fatalf("NewFileWatcher() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := fw.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// Unrelated files in the same directory are ignored
	if err := os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("a=b\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case event := <-fw.Events():
		if event.Path != fw.Path() {
			t.Errorf("Expected event for %s, got %s", fw.Path(), event.Path)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for file event")
	}
}
