package indexer

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch starts an fsnotify watcher on the vault root and feeds file change
// events into the indexer queue until ctx is cancelled.
//
// New directories created at runtime are automatically added to the watch
// list. Rename events trigger a debounced reconciliation pass that removes
// stale index entries whose files no longer exist on disk and indexes files
// that appeared at a new path.
func (ix *Indexer) Watch(ctx context.Context, vaultRoot string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, vaultRoot); err != nil {
		return err
	}

	ix.logger.Info("watcher: started", slog.String("root", vaultRoot))

	// reconcileTimer is used to debounce rename reconciliation.
	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(200 * time.Millisecond)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			ix.logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			ix.reconcile()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			absPath := ev.Name

			// New directories: add to the watch list and pick up any
			// files already inside them.
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						ix.logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					}
					ix.enqueueDir(vaultRoot, absPath)
					continue
				}
			}

			rel, relErr := filepath.Rel(vaultRoot, absPath)
			if relErr != nil {
				continue
			}
			rel = filepath.ToSlash(rel)
			if hidden(rel) {
				continue
			}

			switch {
			case ev.Op&fsnotify.Create != 0:
				ix.Enqueue(rel, EventCreated)
			case ev.Op&fsnotify.Write != 0:
				ix.Enqueue(rel, EventUpdated)
			case ev.Op&fsnotify.Remove != 0:
				ix.Enqueue(rel, EventDeleted)
			case ev.Op&fsnotify.Rename != 0:
				// fsnotify fires Rename on the OLD path only; the new
				// path arrives as a separate Create event when it stays
				// inside a watched dir. Drop the old entry now and
				// schedule a reconciliation pass for stragglers.
				ix.Enqueue(rel, EventDeleted)
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			ix.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reconcile compares indexed checksums against the files on disk, removing
// stale entries and enqueueing anything new or changed.
func (ix *Indexer) reconcile() {
	indexed, err := ix.store.AllChecksums()
	if err != nil {
		ix.logger.Warn("reconcile: checksums failed", slog.String("error", err.Error()))
		return
	}
	metas, err := ix.provider.List("")
	if err != nil {
		ix.logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]string, len(metas))
	for _, m := range metas {
		disk[m.Path] = m.Checksum
	}

	for p := range indexed {
		if _, ok := disk[p]; !ok {
			ix.Enqueue(p, EventDeleted)
		}
	}
	for p, cs := range disk {
		if indexed[p] != cs {
			ix.Enqueue(p, EventUpdated)
		}
	}
}

// enqueueDir enqueues every file found under a newly created directory.
func (ix *Indexer) enqueueDir(vaultRoot, dirPath string) {
	_ = filepath.WalkDir(dirPath, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(vaultRoot, p)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if hidden(rel) {
			return nil
		}
		ix.Enqueue(rel, EventCreated)
		return nil
	})
}

// addDirsRecursive adds root and all its non-hidden subdirectories to the
// watch list.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.Add(p)
	})
}

// hidden reports whether any segment of a vault-relative path is a dotfile.
func hidden(rel string) bool {
	for _, part := range strings.Split(rel, "/") {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}
