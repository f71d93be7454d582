package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/laguz/internal/indexer"
	"github.com/starford/laguz/internal/query"
	"github.com/starford/laguz/internal/scoring"
	"github.com/starford/laguz/internal/search"
	"github.com/starford/laguz/internal/testutil"
)

type fixture struct {
	root   string
	server *httptest.Server
}

func newFixture(t *testing.T, authEnabled bool, token string) *fixture {
	t.Helper()
	root, provider := testutil.TestVault(t)
	st := testutil.TestStore(t)
	content, filename := testutil.TestTokenizers(t)
	logger := testutil.Logger()

	ix := indexer.New(st, provider, content, filename, indexer.DefaultConfig(), logger)
	scorer := scoring.New(st, scoring.DefaultConfig(), logger)
	ev := query.NewEvaluator(st, scorer, content, filename, query.DefaultConfig(), logger)
	svc := search.NewService(st, ix, ev, search.Config{}, logger)

	srv := httptest.NewServer(NewRouter(svc, provider, authEnabled, token, nil))
	t.Cleanup(srv.Close)
	return &fixture{root: root, server: srv}
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

func (fx *fixture) reindex(t *testing.T) {
	t.Helper()
	resp, err := http.Post(fx.server.URL+"/reindex", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("reindex status = %d", resp.StatusCode)
	}
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatal(err)
	}
}

func TestSearch(t *testing.T) {
	fx := newFixture(t, false, "")
	fx.write(t, "notes/alpha.md", "the quick brown fox")
	fx.write(t, "notes/beta.md", "unrelated text here")
	fx.reindex(t)

	body, _ := json.Marshal(SearchRequest{
		Operations: []search.Operation{{Keywords: []string{"fox"}}},
	})
	resp, err := http.Post(fx.server.URL+"/search", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var page SearchResponse
	decode(t, resp, &page)
	if page.TotalCount != 1 || page.Items[0].Document.Path != "notes/alpha.md" {
		t.Errorf("page = %+v", page)
	}
}

func TestSearch_BadRequest(t *testing.T) {
	fx := newFixture(t, false, "")

	resp, err := http.Post(fx.server.URL+"/search", "application/json", bytes.NewReader([]byte("{not json")))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid JSON status = %d", resp.StatusCode)
	}

	body, _ := json.Marshal(SearchRequest{})
	resp, err = http.Post(fx.server.URL+"/search", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("no operations status = %d", resp.StatusCode)
	}
}

func TestListDocuments(t *testing.T) {
	fx := newFixture(t, false, "")
	fx.write(t, "a.md", "first note")
	fx.write(t, "b.md", "second note")
	fx.reindex(t)

	resp, err := http.Get(fx.server.URL + "/documents?limit=1")
	if err != nil {
		t.Fatal(err)
	}
	var list DocumentListResponse
	decode(t, resp, &list)
	if list.Total != 2 || len(list.Documents) != 1 {
		t.Errorf("list = %+v", list)
	}
}

func TestGetDocument(t *testing.T) {
	fx := newFixture(t, false, "")
	fx.write(t, "topics/note.md", "---\nstatus: open\n---\nnote body")
	fx.reindex(t)

	resp, err := http.Get(fx.server.URL + "/documents/topics/note.md")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var doc DocumentResponse
	decode(t, resp, &doc)
	if doc.Document.Path != "topics/note.md" {
		t.Errorf("path = %q", doc.Document.Path)
	}
	if len(doc.Properties) == 0 {
		t.Error("properties missing")
	}
	if doc.Content == "" {
		t.Error("content missing for text file")
	}
}

func TestGetDocument_EncodedSlash(t *testing.T) {
	fx := newFixture(t, false, "")
	fx.write(t, "topics/note.md", "note body")
	fx.reindex(t)

	resp, err := http.Get(fx.server.URL + "/documents/topics%2Fnote.md")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("encoded slash status = %d", resp.StatusCode)
	}
}

func TestGetDocument_NotFound(t *testing.T) {
	fx := newFixture(t, false, "")

	resp, err := http.Get(fx.server.URL + "/documents/missing.md")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestStats(t *testing.T) {
	fx := newFixture(t, false, "")
	fx.write(t, "a.md", "some words")
	fx.reindex(t)

	resp, err := http.Get(fx.server.URL + "/stats")
	if err != nil {
		t.Fatal(err)
	}
	var stats StatsResponse
	decode(t, resp, &stats)
	if stats.Documents != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestAuth(t *testing.T) {
	fx := newFixture(t, true, "secret")

	resp, err := http.Get(fx.server.URL + "/stats")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d", resp.StatusCode)
	}

	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, fx.server.URL+"/stats", nil)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("authenticated status = %d", resp.StatusCode)
	}

	req.Header.Set("Authorization", "Bearer wrong")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("wrong token status = %d", resp.StatusCode)
	}
}
