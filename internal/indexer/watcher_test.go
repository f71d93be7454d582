package indexer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fsnotify/fsnotify"
)

func TestAddDirsRecursive(t *testing.T) {
	root := t.TempDir()
	for _, d := range []string{"sub", "sub/deep", ".obsidian", ".obsidian/plugins"} {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			t.Fatal(err)
		}
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		t.Fatal(err)
	}

	watched := map[string]bool{}
	for _, p := range w.WatchList() {
		watched[p] = true
	}
	for _, want := range []string{root, filepath.Join(root, "sub"), filepath.Join(root, "sub", "deep")} {
		if !watched[want] {
			t.Errorf("%s not on the watch list: %v", want, w.WatchList())
		}
	}
	if watched[filepath.Join(root, ".obsidian")] {
		t.Error("hidden directory must not be watched")
	}
}
