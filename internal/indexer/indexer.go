// Package indexer keeps the inverted index in sync with the vault. Watcher
// events flow through a single FIFO queue, and every mutation entry point
// takes the same lock, so at most one document is being (re)indexed at a
// time even when a full rebuild runs alongside the queue consumer.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"

	"github.com/starford/laguz/internal/models"
	"github.com/starford/laguz/internal/parser"
	"github.com/starford/laguz/internal/storage"
	"github.com/starford/laguz/internal/store"
	"github.com/starford/laguz/internal/tokenizer"
)

// Event kinds reported to change callbacks.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

// EventCallback is invoked after a successful index mutation.
type EventCallback func(kind string, path string)

// Config tunes indexer behaviour.
type Config struct {
	// ExcludedPrefixes lists vault-relative folder prefixes that are never
	// indexed (e.g. "Private/", "templates/").
	ExcludedPrefixes []string
	// CommandPrefix marks files that are commands rather than notes; a file
	// whose first non-blank line starts with it is kept out of the index.
	CommandPrefix string
	// QueueSize bounds the pending mutation queue.
	QueueSize int
}

// DefaultConfig returns the standard indexer configuration.
func DefaultConfig() Config {
	return Config{
		CommandPrefix: "::",
		QueueSize:     1024,
	}
}

type task struct {
	path string
	kind string
}

// Indexer drains a mutation queue against the document store.
type Indexer struct {
	store    *store.Store
	provider storage.Provider
	content  *tokenizer.Tokenizer
	filename *tokenizer.Tokenizer
	cfg      Config
	logger   *slog.Logger
	queue    chan task
	onEvent  []EventCallback

	// mu serializes IndexFile, Remove, and Build so the queue consumer and
	// a concurrent rebuild never mutate the same document at once.
	mu sync.Mutex

	// Heuristic re-index cache: the most recently indexed path and its
	// token count. A modify event for the same path whose content
	// tokenizes to the same count is assumed unchanged. Guarded by mu.
	lastPath   string
	lastTokens int
}

// New builds an Indexer. Callbacks can be registered with OnEvent before
// Run is started.
func New(st *store.Store, provider storage.Provider, content, filename *tokenizer.Tokenizer, cfg Config, logger *slog.Logger) *Indexer {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	if cfg.CommandPrefix == "" {
		cfg.CommandPrefix = DefaultConfig().CommandPrefix
	}
	return &Indexer{
		store:    st,
		provider: provider,
		content:  content,
		filename: filename,
		cfg:      cfg,
		logger:   logger,
		queue:    make(chan task, cfg.QueueSize),
	}
}

// OnEvent registers a callback fired after each successful mutation.
// Not safe to call once Run has started.
func (ix *Indexer) OnEvent(cb EventCallback) {
	ix.onEvent = append(ix.onEvent, cb)
}

// Enqueue schedules an index mutation. A full queue blocks the caller until
// the consumer frees a slot; events are never dropped.
func (ix *Indexer) Enqueue(p string, kind string) {
	select {
	case ix.queue <- task{path: p, kind: kind}:
	default:
		ix.logger.Warn("indexer: queue full, waiting",
			slog.String("path", p), slog.String("kind", kind))
		ix.queue <- task{path: p, kind: kind}
	}
}

// Run drains the queue until ctx is cancelled. Errors for individual files
// are logged and do not stop the loop. On cancellation the remaining queue
// is discarded so producers blocked in Enqueue are released.
func (ix *Indexer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case <-ix.queue:
				default:
					return ctx.Err()
				}
			}
		case t := <-ix.queue:
			ix.process(t)
		}
	}
}

func (ix *Indexer) process(t task) {
	var err error
	switch t.kind {
	case EventDeleted:
		err = ix.Remove(t.path)
	default:
		err = ix.IndexFile(t.path)
	}
	if err != nil {
		ix.logger.Warn("indexer: mutation failed",
			slog.String("path", t.path),
			slog.String("kind", t.kind),
			slog.String("error", err.Error()))
	}
}

// isExcluded reports whether a vault-relative path falls under an excluded
// folder prefix.
func (ix *Indexer) isExcluded(p string) bool {
	p = strings.TrimPrefix(p, "/")
	for _, prefix := range ix.cfg.ExcludedPrefixes {
		prefix = strings.Trim(prefix, "/")
		if prefix == "" {
			continue
		}
		if p == prefix || strings.HasPrefix(p, prefix+"/") {
			return true
		}
	}
	return false
}

// isCommand reports whether text is a command file: its first non-blank
// line starts with the configured command prefix.
func (ix *Indexer) isCommand(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		return strings.HasPrefix(trimmed, ix.cfg.CommandPrefix)
	}
	return false
}

// IndexFile (re)indexes a single vault file: resolves the folder, upserts
// the document row, and replaces its postings and properties wholesale.
func (ix *Indexer) IndexFile(p string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.indexFile(p)
}

func (ix *Indexer) indexFile(p string) error {
	if ix.isExcluded(p) {
		ix.logger.Debug("indexer: excluded", slog.String("path", p))
		return nil
	}

	meta, err := ix.provider.Metadata(p)
	if err != nil {
		return fmt.Errorf("indexer: metadata: %w", err)
	}

	prev, err := ix.store.GetChecksum(p)
	if err != nil {
		return err
	}
	known := prev != ""
	if known && prev == meta.Checksum {
		ix.logger.Debug("indexer: unchanged", slog.String("path", p))
		return nil
	}

	name := path.Base(p)
	body := strings.TrimSuffix(name, path.Ext(name))
	var props []models.Property
	if meta.Text {
		raw, err := ix.provider.Read(p)
		if err != nil {
			return fmt.Errorf("indexer: read: %w", err)
		}
		res, err := parser.Parse(raw)
		if err != nil {
			return fmt.Errorf("indexer: parse: %w", err)
		}
		if ix.isCommand(res.Body) {
			// Command files never enter the index; drop any stale entry.
			if known {
				return ix.remove(p)
			}
			return nil
		}
		body = res.Body
		for _, kv := range res.Properties() {
			props = append(props, models.NewProperty(0, kv.Name, kv.Value))
		}
		for _, tag := range res.Tags {
			props = append(props, models.NewProperty(0, "tag", tag))
		}
	}

	tokens, total := ix.content.Tokenize(body)

	// Token-count heuristic: a modified known file whose stream length is
	// unchanged is treated as a cosmetic edit and skipped.
	if known && p == ix.lastPath && total == ix.lastTokens {
		ix.logger.Debug("indexer: token count unchanged", slog.String("path", p))
		return nil
	}

	folder, err := ix.store.GetOrCreateFolder(path.Dir(p))
	if err != nil {
		return err
	}

	doc := models.Document{
		Path:       p,
		Name:       strings.ToLower(name),
		FolderID:   folder.ID,
		ModifiedAt: meta.ModifiedAt,
		Tags:       meta.Tags,
		TokenCount: total,
	}
	id, err := ix.store.UpsertDocument(doc, meta.Checksum)
	if err != nil {
		return err
	}

	postings := make([]models.Posting, 0, len(tokens))
	for _, tok := range tokens {
		postings = append(postings, models.Posting{
			Term:       tok.Term,
			DocumentID: id,
			FolderID:   folder.ID,
			Source:     models.SourceContent,
			Frequency:  tok.Count,
			Positions:  tok.Positions,
		})
	}
	nameTokens, _ := ix.filename.Tokenize(strings.TrimSuffix(name, path.Ext(name)))
	for _, tok := range nameTokens {
		postings = append(postings, models.Posting{
			Term:       tok.Term,
			DocumentID: id,
			FolderID:   folder.ID,
			Source:     models.SourceFilename,
			Frequency:  tok.Count,
			Positions:  tok.Positions,
		})
	}
	if err := ix.store.ReplacePostings(id, postings); err != nil {
		return err
	}
	for i := range props {
		props[i].DocumentID = id
	}
	if err := ix.store.ReplaceProperties(id, props); err != nil {
		return err
	}

	ix.lastPath = p
	ix.lastTokens = total

	kind := EventUpdated
	if !known {
		kind = EventCreated
	}
	ix.logger.Info("indexer: indexed",
		slog.String("path", p),
		slog.Int("tokens", total),
		slog.String("kind", kind))
	ix.emit(kind, p)
	return nil
}

// Remove deletes a document and its postings and properties, then cleans
// up the owning folder if it became empty.
func (ix *Indexer) Remove(p string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.remove(p)
}

func (ix *Indexer) remove(p string) error {
	folderID, err := ix.store.DeleteDocument(p)
	if err != nil {
		return err
	}
	if folderID < 0 {
		return nil // was not indexed
	}
	if err := ix.store.DeleteFolderIfEmpty(folderID); err != nil {
		ix.logger.Warn("indexer: folder cleanup failed",
			slog.Int64("folder_id", folderID), slog.String("error", err.Error()))
	}
	if p == ix.lastPath {
		ix.lastPath = ""
		ix.lastTokens = 0
	}
	ix.logger.Info("indexer: removed", slog.String("path", p))
	ix.emit(EventDeleted, p)
	return nil
}

// Build walks the whole vault and brings the index up to date: changed or
// new files are indexed, entries without a file on disk are removed.
// Per-file errors are logged and do not abort the walk.
func (ix *Indexer) Build(ctx context.Context) error {
	metas, err := ix.provider.List("")
	if err != nil {
		return fmt.Errorf("indexer: build list: %w", err)
	}
	indexed, err := ix.store.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		if err := ctx.Err(); err != nil {
			return err
		}
		disk[m.Path] = struct{}{}
		if ix.isExcluded(m.Path) {
			continue
		}
		if indexed[m.Path] == m.Checksum {
			continue
		}
		if err := ix.IndexFile(m.Path); err != nil {
			ix.logger.Warn("indexer: build index failed",
				slog.String("path", m.Path), slog.String("error", err.Error()))
		}
	}

	for p := range indexed {
		if _, ok := disk[p]; ok && !ix.isExcluded(p) {
			continue
		}
		if err := ix.Remove(p); err != nil {
			ix.logger.Warn("indexer: build remove failed",
				slog.String("path", p), slog.String("error", err.Error()))
		}
	}
	return nil
}

func (ix *Indexer) emit(kind, p string) {
	for _, cb := range ix.onEvent {
		cb(kind, p)
	}
}
