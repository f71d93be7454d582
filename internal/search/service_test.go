package search

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/laguz/internal/indexer"
	"github.com/starford/laguz/internal/models"
	"github.com/starford/laguz/internal/query"
	"github.com/starford/laguz/internal/scoring"
	"github.com/starford/laguz/internal/testutil"
)

type fixture struct {
	root    string
	service *Service
}

func newFixture(t *testing.T, excluded ...string) *fixture {
	t.Helper()
	root, provider := testutil.TestVault(t)
	st := testutil.TestStore(t)
	content, filename := testutil.TestTokenizers(t)
	logger := testutil.Logger()

	ixCfg := indexer.DefaultConfig()
	ixCfg.ExcludedPrefixes = excluded
	ix := indexer.New(st, provider, content, filename, ixCfg, logger)

	scorer := scoring.New(st, scoring.DefaultConfig(), logger)
	ev := query.NewEvaluator(st, scorer, content, filename, query.DefaultConfig(), logger)

	svc := NewService(st, ix, ev, Config{ExcludedPrefixes: excluded}, logger)
	return &fixture{root: root, service: svc}
}

func (fx *fixture) write(t *testing.T, rel, body string) {
	t.Helper()
	abs := filepath.Join(fx.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func resultPaths(results []models.ScoredResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Document.Path
	}
	return out
}

func TestInitialize_BuildsEmptyIndex(t *testing.T) {
	fx := newFixture(t)
	fx.write(t, "notes/alpha.md", "the quick brown fox")
	fx.write(t, "notes/beta.md", "unrelated content here")

	if err := fx.service.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	results, err := fx.service.Query([]Operation{{Keywords: []string{"fox"}}})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Document.Path != "notes/alpha.md" {
		t.Errorf("results = %v", resultPaths(results))
	}
	if results[0].Score <= 0 {
		t.Errorf("score = %f, want > 0", results[0].Score)
	}
}

func TestQuery_EmptyOperationRejected(t *testing.T) {
	fx := newFixture(t)
	fx.write(t, "a.md", "anything")
	if err := fx.service.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}

	results, err := fx.service.Query([]Operation{{}})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("empty operation must match nothing, got %v", resultPaths(results))
	}
}

func TestQuery_OperationFieldsAreAnded(t *testing.T) {
	fx := newFixture(t)
	fx.write(t, "Work/meeting.md", "weekly meeting agenda")
	fx.write(t, "Work/todo.md", "shopping list")
	fx.write(t, "Home/meeting.md", "school meeting")
	if err := fx.service.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}

	results, err := fx.service.Query([]Operation{{
		Folders:  []string{"Work"},
		Keywords: []string{"meeting"},
	}})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Document.Path != "Work/meeting.md" {
		t.Errorf("results = %v, want only Work/meeting.md", resultPaths(results))
	}
}

func TestQuery_OperationsAreOred(t *testing.T) {
	fx := newFixture(t)
	fx.write(t, "alpha.md", "alpha topic")
	fx.write(t, "beta.md", "beta topic")
	if err := fx.service.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}

	results, err := fx.service.Query([]Operation{
		{Keywords: []string{"alpha"}},
		{Keywords: []string{"beta"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	got := map[string]bool{}
	for _, p := range resultPaths(results) {
		got[p] = true
	}
	if !got["alpha.md"] || !got["beta.md"] {
		t.Errorf("results = %v, want union of both operations", resultPaths(results))
	}
}

func TestQuery_ExcludedNeverReturned(t *testing.T) {
	fx := newFixture(t, "Private")
	fx.write(t, "Private/secret.md", "classified keyword inside")
	fx.write(t, "open.md", "classified but public")
	if err := fx.service.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}

	results, err := fx.service.Query([]Operation{{Keywords: []string{"classified"}}})
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range resultPaths(results) {
		if p == "Private/secret.md" {
			t.Fatal("excluded document leaked into results")
		}
	}
	if len(results) != 1 {
		t.Errorf("results = %v", resultPaths(results))
	}
}

func TestQuery_SortedDescending(t *testing.T) {
	fx := newFixture(t)
	fx.write(t, "heavy.md", "signal signal signal signal")
	fx.write(t, "light.md", "signal plus other words entirely")
	if err := fx.service.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}

	results, err := fx.service.Query([]Operation{{Keywords: []string{"signal"}}})
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("results not sorted descending: %v", results)
		}
	}
}

func TestPaginate(t *testing.T) {
	results := make([]models.ScoredResult, 25)
	for i := range results {
		results[i].Document.ID = int64(i)
	}

	page := Paginate(results, 2, 10)
	if page.TotalCount != 25 || page.TotalPages != 3 {
		t.Errorf("page meta = %+v", page)
	}
	if len(page.Items) != 10 || page.Items[0].Document.ID != 10 {
		t.Errorf("page slice = %+v", page.Items)
	}

	last := Paginate(results, 3, 10)
	if len(last.Items) != 5 {
		t.Errorf("last page has %d items", len(last.Items))
	}

	past := Paginate(results, 9, 10)
	if len(past.Items) != 0 || past.TotalCount != 25 {
		t.Errorf("past-the-end page = %+v", past)
	}
}

func TestStats(t *testing.T) {
	fx := newFixture(t)
	fx.write(t, "one.md", "a few words here")
	if err := fx.service.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}

	stats, err := fx.service.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Documents != 1 || stats.AvgTokenCount <= 0 || stats.SchemaVersion < 2 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestGetDocument(t *testing.T) {
	fx := newFixture(t)
	fx.write(t, "doc.md", "---\nstatus: open\n---\nbody text")
	if err := fx.service.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}

	detail, err := fx.service.GetDocument("doc.md")
	if err != nil {
		t.Fatal(err)
	}
	if detail == nil {
		t.Fatal("document not found")
	}
	if len(detail.Properties) == 0 {
		t.Error("properties missing")
	}

	missing, err := fx.service.GetDocument("nope.md")
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Error("unknown path must return nil")
	}
}
