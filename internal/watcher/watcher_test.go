package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func collect(t *testing.T, root string, exclude []string) chan []string {
	t.Helper()
	got := make(chan []string, 4)
	w, err := New(50*time.Millisecond, ".java", exclude, func(names []string) {
		got <- names
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = w.Close() })
	if err := w.Watch(root); err != nil {
		t.Fatal(err)
	}
	return got
}

func waitBatch(t *testing.T, got chan []string) []string {
	t.Helper()
	select {
	case names := <-got:
		return names
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change notification")
		return nil
	}
}

func TestWatcher_BatchesWritesIntoOneNotification(t *testing.T) {
	root := t.TempDir()
	got := collect(t, root, nil)

	if err := os.WriteFile(filepath.Join(root, "A.java"), []byte("class A {}"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "B.java"), []byte("class B {}"), 0644); err != nil {
		t.Fatal(err)
	}

	names := waitBatch(t, got)
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		seen[n] = true
	}
	if !seen["A.java"] || !seen["B.java"] {
		t.Fatalf("expected both units in one batch, got %v", names)
	}
}

func TestWatcher_IgnoresOtherSuffixes(t *testing.T) {
	root := t.TempDir()
	got := collect(t, root, nil)

	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case names := <-got:
		t.Fatalf("unexpected notification for non-unit file: %v", names)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_AppliesExcludeGlobs(t *testing.T) {
	root := t.TempDir()
	got := collect(t, root, []string{"*Test*"})

	if err := os.WriteFile(filepath.Join(root, "ATest.java"), []byte("class ATest {}"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case names := <-got:
		t.Fatalf("unexpected notification for excluded file: %v", names)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_ReportsRemovals(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "A.java")
	if err := os.WriteFile(path, []byte("class A {}"), 0644); err != nil {
		t.Fatal(err)
	}

	got := collect(t, root, nil)
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	names := waitBatch(t, got)
	if len(names) != 1 || names[0] != "A.java" {
		t.Fatalf("expected removal notification for A.java, got %v", names)
	}
}
