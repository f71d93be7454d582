package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func newVault(t *testing.T) (*FS, string) {
	t.Helper()
	root := t.TempDir()
	fs, err := NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	return fs, root
}

func write(t *testing.T, root, rel, body string) {
	t.Helper()
	abs := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestList(t *testing.T) {
	fs, root := newVault(t)
	write(t, root, "a.md", "alpha")
	write(t, root, "sub/b.txt", "beta")
	write(t, root, "sub/image.png", "not text")
	write(t, root, ".obsidian/config.json", "hidden")
	write(t, root, ".hidden.md", "hidden file")

	metas, err := fs.List("")
	if err != nil {
		t.Fatal(err)
	}
	got := map[string]bool{}
	for _, m := range metas {
		got[m.Path] = m.Text
		if m.Checksum == "" {
			t.Errorf("%s: empty checksum", m.Path)
		}
		if m.ModifiedAt.IsZero() {
			t.Errorf("%s: zero mod time", m.Path)
		}
	}
	if len(got) != 3 {
		t.Fatalf("listed %v, want 3 visible files", got)
	}
	if !got["a.md"] || !got["sub/b.txt"] {
		t.Errorf("text flags = %v", got)
	}
	if got["sub/image.png"] {
		t.Error("png must not be flagged as text")
	}
}

func TestList_Subdir(t *testing.T) {
	fs, root := newVault(t)
	write(t, root, "a.md", "alpha")
	write(t, root, "sub/b.md", "beta")

	metas, err := fs.List("sub")
	if err != nil {
		t.Fatal(err)
	}
	if len(metas) != 1 || metas[0].Path != "sub/b.md" {
		t.Errorf("metas = %+v", metas)
	}
}

func TestRead_RejectsTraversal(t *testing.T) {
	fs, _ := newVault(t)
	if _, err := fs.Read("../../../etc/passwd"); err == nil {
		t.Error("traversal path must be rejected")
	}
	if _, err := fs.Read("/etc/passwd"); err == nil {
		t.Error("absolute path must be rejected")
	}
}

func TestMetadata(t *testing.T) {
	fs, root := newVault(t)
	write(t, root, "note.md", "---\nstatus: open\ntags: [work]\n---\nBody with #inline tag")

	meta, err := fs.Metadata("note.md")
	if err != nil {
		t.Fatal(err)
	}
	if !meta.Text {
		t.Error("md file must be text")
	}
	if meta.Frontmatter["status"] != "open" {
		t.Errorf("frontmatter = %v", meta.Frontmatter)
	}
	if len(meta.Tags) != 2 {
		t.Errorf("tags = %v, want frontmatter + inline", meta.Tags)
	}
}

func TestMetadata_NonText(t *testing.T) {
	fs, root := newVault(t)
	write(t, root, "image.png", "binary-ish")

	meta, err := fs.Metadata("image.png")
	if err != nil {
		t.Fatal(err)
	}
	if meta.Text {
		t.Error("png must not be text")
	}
	if meta.Frontmatter != nil {
		t.Error("no frontmatter expected for non-text files")
	}
}
