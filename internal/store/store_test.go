package store

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/starford/laguz/internal/models"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	f, err := os.CreateTemp("", "laguz-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	s, err := Open(f.Name(), slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustIndexDoc(t *testing.T, s *Store, path string, folderPath string) int64 {
	t.Helper()
	folder, err := s.GetOrCreateFolder(folderPath)
	if err != nil {
		t.Fatalf("GetOrCreateFolder: %v", err)
	}
	id, err := s.UpsertDocument(models.Document{
		Path:       path,
		Name:       path,
		FolderID:   folder.ID,
		ModifiedAt: time.Now(),
		TokenCount: 10,
	}, "cs")
	if err != nil {
		t.Fatalf("UpsertDocument: %v", err)
	}
	return id
}

func TestMigrations(t *testing.T) {
	s := testStore(t)
	v, err := s.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != 2 {
		t.Errorf("schema version = %d, want 2", v)
	}
	// Reopening must be a no-op, not a failure.
	var count int
	if err := s.conn.QueryRow(`SELECT count(*) FROM properties`).Scan(&count); err != nil {
		t.Fatalf("properties table missing: %v", err)
	}
}

func TestRootFolder(t *testing.T) {
	s := testStore(t)
	f, err := s.GetOrCreateFolder("")
	if err != nil {
		t.Fatal(err)
	}
	if f.ID != RootFolderID || f.Path != "" {
		t.Errorf("root folder = %+v", f)
	}
}

func TestUpsertDocument_KeepsID(t *testing.T) {
	s := testStore(t)
	id1 := mustIndexDoc(t, s, "notes/alpha.md", "notes")
	id2 := mustIndexDoc(t, s, "notes/alpha.md", "notes")
	if id1 != id2 {
		t.Errorf("re-upsert changed id: %d -> %d", id1, id2)
	}
	id3 := mustIndexDoc(t, s, "notes/beta.md", "notes")
	if id3 == id1 {
		t.Error("distinct paths must get distinct ids")
	}
}

func TestDeleteDocument_Cascades(t *testing.T) {
	s := testStore(t)
	id := mustIndexDoc(t, s, "del.md", "")
	if err := s.ReplacePostings(id, []models.Posting{
		{Term: "gone", DocumentID: id, Source: models.SourceContent, Frequency: 1, Positions: []int{0}},
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.ReplaceProperties(id, []models.Property{models.NewProperty(id, "k", "v")}); err != nil {
		t.Fatal(err)
	}

	folderID, err := s.DeleteDocument("del.md")
	if err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	if folderID != RootFolderID {
		t.Errorf("folderID = %d", folderID)
	}
	postings, _ := s.PostingsForDocument(id)
	if len(postings) != 0 {
		t.Error("postings should be removed with the document")
	}
	props, _ := s.PropertiesForDocument(id)
	if len(props) != 0 {
		t.Error("properties should be removed with the document")
	}
}

func TestDeleteDocument_NotIndexed(t *testing.T) {
	s := testStore(t)
	folderID, err := s.DeleteDocument("never/indexed.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if folderID != -1 {
		t.Errorf("folderID = %d, want -1", folderID)
	}
}

func TestReplacePostings_Idempotent(t *testing.T) {
	s := testStore(t)
	id := mustIndexDoc(t, s, "idem.md", "")
	set := []models.Posting{
		{Term: "alpha", DocumentID: id, Source: models.SourceContent, Frequency: 2, Positions: []int{0, 3}},
		{Term: "beta", DocumentID: id, Source: models.SourceContent, Frequency: 1, Positions: []int{1}},
		{Term: "idem", DocumentID: id, Source: models.SourceFilename, Frequency: 1, Positions: []int{0}},
	}
	if err := s.ReplacePostings(id, set); err != nil {
		t.Fatal(err)
	}
	if err := s.ReplacePostings(id, set); err != nil {
		t.Fatal(err)
	}
	got, err := s.PostingsForDocument(id)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d postings, want 3 (no duplicates)", len(got))
	}
	for _, p := range got {
		if p.Frequency != len(p.Positions) {
			t.Errorf("posting %q: frequency %d != len(positions) %d", p.Term, p.Frequency, len(p.Positions))
		}
	}
}

func TestPostingsForTerms_Scoped(t *testing.T) {
	s := testStore(t)
	work, _ := s.GetOrCreateFolder("work")
	idA := mustIndexDoc(t, s, "work/a.md", "work")
	idB := mustIndexDoc(t, s, "b.md", "")
	_ = s.ReplacePostings(idA, []models.Posting{
		{Term: "meeting", DocumentID: idA, FolderID: work.ID, Source: models.SourceContent, Frequency: 1, Positions: []int{0}},
	})
	_ = s.ReplacePostings(idB, []models.Posting{
		{Term: "meeting", DocumentID: idB, FolderID: RootFolderID, Source: models.SourceContent, Frequency: 1, Positions: []int{0}},
	})

	all, err := s.PostingsForTerms([]string{"meeting"})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d postings, want 2", len(all))
	}

	scoped, err := s.PostingsForTermsInFolders([]string{"meeting"}, []int64{work.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(scoped) != 1 || scoped[0].DocumentID != idA {
		t.Errorf("folder-scoped postings = %+v", scoped)
	}

	byDoc, err := s.PostingsForTermsInDocuments([]string{"meeting"}, []int64{idB})
	if err != nil {
		t.Fatal(err)
	}
	if len(byDoc) != 1 || byDoc[0].DocumentID != idB {
		t.Errorf("document-scoped postings = %+v", byDoc)
	}
}

func TestPostingsForTerms_UnknownTerm(t *testing.T) {
	s := testStore(t)
	postings, err := s.PostingsForTerms([]string{"nosuchterm"})
	if err != nil {
		t.Fatalf("unknown term must not error: %v", err)
	}
	if len(postings) != 0 {
		t.Errorf("got %d postings, want 0", len(postings))
	}
}

func TestFoldersMatching(t *testing.T) {
	s := testStore(t)
	_, _ = s.GetOrCreateFolder("Projects/Work")
	_, _ = s.GetOrCreateFolder("Archive")

	got, err := s.FoldersMatching([]string{"work"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Path != "Projects/Work" {
		t.Errorf("FoldersMatching(work) = %+v", got)
	}

	got, _ = s.FoldersMatching([]string{"projects"})
	if len(got) != 1 {
		t.Errorf("path substring should match, got %+v", got)
	}
}

func TestDeleteFolderIfEmpty(t *testing.T) {
	s := testStore(t)
	f, _ := s.GetOrCreateFolder("temp")
	mustIndexDoc(t, s, "temp/keep.md", "temp")

	if err := s.DeleteFolderIfEmpty(f.ID); err != nil {
		t.Fatal(err)
	}
	if got, _ := s.GetFolder("temp"); got == nil {
		t.Fatal("non-empty folder must survive cleanup")
	}

	_, _ = s.DeleteDocument("temp/keep.md")
	if err := s.DeleteFolderIfEmpty(f.ID); err != nil {
		t.Fatal(err)
	}
	if got, _ := s.GetFolder("temp"); got != nil {
		t.Error("empty folder should be removed")
	}
}

func propDoc(t *testing.T, s *Store, path, name, value string) int64 {
	t.Helper()
	id := mustIndexDoc(t, s, path, "")
	if err := s.ReplaceProperties(id, []models.Property{models.NewProperty(id, name, value)}); err != nil {
		t.Fatal(err)
	}
	return id
}

func TestPropertyEquality_TypeCoercion(t *testing.T) {
	s := testStore(t)
	numDoc := propDoc(t, s, "num.md", "priority", "3")
	strDoc := propDoc(t, s, "str.md", "priority", "5")

	// String query against numerically stored value.
	ids, err := s.DocumentIDsWithProperty("priority", "3", OpEquals)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != numDoc {
		t.Errorf("priority == \"3\": %v", ids)
	}

	// Numeric query against string-stored value.
	ids, _ = s.DocumentIDsWithProperty("priority", "5", "")
	if len(ids) != 1 || ids[0] != strDoc {
		t.Errorf("priority == 5: %v", ids)
	}
}

func TestPropertyEquality_NameNormalised(t *testing.T) {
	s := testStore(t)
	id := propDoc(t, s, "case.md", "Status", "Done")

	ids, err := s.DocumentIDsWithProperty("STATUS", "done", OpEquals)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != id {
		t.Errorf("case-insensitive property lookup failed: %v", ids)
	}
}

func TestPropertyRange_BoundarySemantics(t *testing.T) {
	s := testStore(t)
	byValue := map[string]int64{}
	for _, v := range []string{"1", "3", "5", "10"} {
		byValue[v] = propDoc(t, s, "p"+v+".md", "priority", v)
	}

	cases := []struct {
		op   string
		want []string
	}{
		{OpGreater, []string{"5", "10"}},
		{OpGreaterEqual, []string{"3", "5", "10"}},
		{OpLess, []string{"1"}},
		{OpLessEqual, []string{"1", "3"}},
		{OpNotEquals, []string{"1", "5", "10"}},
	}
	for _, tc := range cases {
		ids, err := s.DocumentIDsWithProperty("priority", "3", tc.op)
		if err != nil {
			t.Fatalf("%s: %v", tc.op, err)
		}
		want := make(map[int64]struct{}, len(tc.want))
		for _, v := range tc.want {
			want[byValue[v]] = struct{}{}
		}
		if len(ids) != len(want) {
			t.Errorf("priority %s 3: got %v, want values %v", tc.op, ids, tc.want)
			continue
		}
		for _, id := range ids {
			if _, ok := want[id]; !ok {
				t.Errorf("priority %s 3: unexpected id %d", tc.op, id)
			}
		}
	}
}

func TestPropertyComparison_NonComparableValue(t *testing.T) {
	s := testStore(t)
	propDoc(t, s, "x.md", "status", "done")

	ids, err := s.DocumentIDsWithProperty("status", "done", OpGreater)
	if err != nil {
		t.Fatalf("non-comparable value must not error: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("got %v, want empty", ids)
	}
}

func TestPropertyEquality_DateForms(t *testing.T) {
	s := testStore(t)
	id := propDoc(t, s, "d.md", "due", "2024-03-20")

	// A different spelling of the same date must match via the parsed form.
	ids, err := s.DocumentIDsWithProperty("due", "march 20, 2024", OpEquals)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != id {
		t.Errorf("date equality across representations: %v", ids)
	}
}

func TestPropertyLookup_UnknownName(t *testing.T) {
	s := testStore(t)
	ids, err := s.DocumentIDsWithProperty("nosuch", "x", OpEquals)
	if err != nil {
		t.Fatalf("unknown property name must not error: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("got %v, want empty", ids)
	}
}

func TestAvgTokenCount_Empty(t *testing.T) {
	s := testStore(t)
	avg, err := s.AvgTokenCount()
	if err != nil {
		t.Fatal(err)
	}
	if avg != 0 {
		t.Errorf("avg = %f, want 0", avg)
	}
}
