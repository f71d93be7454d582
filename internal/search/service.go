// Package search is the façade that wires the store, indexer, and query
// engine into one public entry point.
package search

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/starford/laguz/internal/indexer"
	"github.com/starford/laguz/internal/models"
	"github.com/starford/laguz/internal/query"
	"github.com/starford/laguz/internal/store"
)

// Operation is one clause of a compound query. Fields combine with AND;
// operations combine with OR. All fields are optional, but an operation
// with every field empty is rejected.
type Operation struct {
	Keywords   []string               `json:"keywords,omitempty"`
	Filenames  []string               `json:"filenames,omitempty"`
	Folders    []string               `json:"folders,omitempty"`
	Properties []query.PropertyFilter `json:"properties,omitempty"`
}

func (op Operation) empty() bool {
	return len(op.Keywords) == 0 && len(op.Filenames) == 0 &&
		len(op.Folders) == 0 && len(op.Properties) == 0
}

// Page is a paginated slice of search results.
type Page struct {
	Items      []models.ScoredResult `json:"items"`
	TotalCount int                   `json:"total_count"`
	Page       int                   `json:"page"`
	Limit      int                   `json:"limit"`
	TotalPages int                   `json:"total_pages"`
}

// Config tunes the search service.
type Config struct {
	// ExcludedPrefixes mirrors the indexer exclusion list; excluded paths
	// are filtered at the query boundary too, in case stale entries exist.
	ExcludedPrefixes []string
}

// Service orchestrates indexing and querying as a single façade.
type Service struct {
	store     *store.Store
	indexer   *indexer.Indexer
	evaluator *query.Evaluator
	cfg       Config
	logger    *slog.Logger
}

// NewService builds the façade from its collaborators.
func NewService(st *store.Store, ix *indexer.Indexer, ev *query.Evaluator, cfg Config, logger *slog.Logger) *Service {
	return &Service{
		store:     st,
		indexer:   ix,
		evaluator: ev,
		cfg:       cfg,
		logger:    logger,
	}
}

// Initialize makes the index ready: when the store holds no documents yet
// a full vault build runs synchronously.
func (s *Service) Initialize(ctx context.Context) error {
	n, err := s.store.DocumentCount()
	if err != nil {
		return err
	}
	if n > 0 {
		s.logger.Info("search: index present", slog.Int("documents", n))
		return nil
	}
	s.logger.Info("search: empty index, building")
	return s.indexer.Build(ctx)
}

// Reindex rebuilds the whole index from the vault.
func (s *Service) Reindex(ctx context.Context) error {
	return s.indexer.Build(ctx)
}

// Query executes a compound query: each operation's fields are ANDed, the
// operations' results are concatenated, and everything is sorted by
// descending score. Empty operations contribute nothing and log a warning.
func (s *Service) Query(ops []Operation) ([]models.ScoredResult, error) {
	var results []models.ScoredResult
	for _, op := range ops {
		if op.empty() {
			s.logger.Warn("search: operation with no criteria rejected")
			continue
		}
		matches, err := s.evaluator.Evaluate(s.condition(op))
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			if s.isExcluded(m.Document.Path) {
				continue
			}
			results = append(results, models.ScoredResult{
				Document:        m.Document,
				Score:           m.Score,
				KeywordsMatched: m.KeywordsMatched,
			})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Document.ID < results[j].Document.ID
	})
	return results, nil
}

// condition translates one operation into an AND of its present fields.
func (s *Service) condition(op Operation) query.Condition {
	b := query.NewBuilder()
	if len(op.Properties) > 0 {
		b.And(query.Property(op.Properties...))
	}
	if len(op.Folders) > 0 {
		b.And(query.Folder(op.Folders...))
	}
	if len(op.Filenames) > 0 {
		b.And(query.Filename(op.Filenames...))
	}
	if len(op.Keywords) > 0 {
		b.And(query.Keyword(op.Keywords...))
	}
	return b.Build()
}

func (s *Service) isExcluded(path string) bool {
	path = strings.TrimPrefix(path, "/")
	return lo.SomeBy(s.cfg.ExcludedPrefixes, func(prefix string) bool {
		prefix = strings.Trim(prefix, "/")
		return prefix != "" && (path == prefix || strings.HasPrefix(path, prefix+"/"))
	})
}

// Paginate slices results into a page. Pages are 1-based; a page past the
// end yields an empty item list with the same metadata.
func Paginate(results []models.ScoredResult, page, limit int) Page {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	total := len(results)
	totalPages := (total + limit - 1) / limit
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	return Page{
		Items:      results[start:end],
		TotalCount: total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	}
}
