package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/starford/laguz/internal/models"
)

// UpsertDocument inserts a document or updates it in place. A document that
// already exists at the same path keeps its ID. The assigned ID is returned.
func (s *Store) UpsertDocument(doc models.Document, checksum string) (int64, error) {
	tagsJSON, _ := json.Marshal(doc.Tags)

	_, err := s.conn.Exec(`
		INSERT INTO documents (path, name, folder_id, modified_at, tags, token_count, checksum)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			name        = excluded.name,
			folder_id   = excluded.folder_id,
			modified_at = excluded.modified_at,
			tags        = excluded.tags,
			token_count = excluded.token_count,
			checksum    = excluded.checksum
	`, doc.Path, doc.Name, doc.FolderID, doc.ModifiedAt, string(tagsJSON), doc.TokenCount, checksum)
	if err != nil {
		return 0, fmt.Errorf("store: upsert document: %w", err)
	}

	var id int64
	if err := s.conn.QueryRow(`SELECT id FROM documents WHERE path = ?`, doc.Path).Scan(&id); err != nil {
		return 0, fmt.Errorf("store: read document id: %w", err)
	}
	return id, nil
}

// DeleteDocument removes a document together with its postings and
// properties. Returns the folder ID the document lived in, or -1 when the
// path was not indexed.
func (s *Store) DeleteDocument(path string) (int64, error) {
	var id, folderID int64
	err := s.conn.QueryRow(`SELECT id, folder_id FROM documents WHERE path = ?`, path).Scan(&id, &folderID)
	if err == sql.ErrNoRows {
		return -1, nil
	}
	if err != nil {
		return -1, fmt.Errorf("store: lookup document: %w", err)
	}

	tx, err := s.conn.Begin()
	if err != nil {
		return -1, fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, _ = tx.Exec(`DELETE FROM postings WHERE document_id = ?`, id)
	_, _ = tx.Exec(`DELETE FROM properties WHERE document_id = ?`, id)
	_, _ = tx.Exec(`DELETE FROM documents WHERE id = ?`, id)

	if err := tx.Commit(); err != nil {
		return -1, fmt.Errorf("store: delete document: %w", err)
	}
	return folderID, nil
}

// GetDocumentByPath returns the document at path, or nil when not indexed.
func (s *Store) GetDocumentByPath(path string) (*models.Document, error) {
	row := s.conn.QueryRow(`
		SELECT id, path, name, folder_id, modified_at, tags, token_count
		FROM documents WHERE path = ?
	`, path)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get document: %w", err)
	}
	return doc, nil
}

// GetDocumentsByIDs returns the documents for the given ID set, in no
// particular order. Unknown IDs are silently skipped.
func (s *Store) GetDocumentsByIDs(ids []int64) ([]models.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`
		SELECT id, path, name, folder_id, modified_at, tags, token_count
		FROM documents WHERE id IN (%s)
	`, placeholders(len(ids)))
	rows, err := s.conn.Query(query, int64Args(ids)...)
	if err != nil {
		return nil, fmt.Errorf("store: documents by ids: %w", err)
	}
	defer rows.Close()
	return collectDocuments(rows)
}

// DocumentIDsInFolders returns the IDs of all documents whose owning folder
// is in the given set.
func (s *Store) DocumentIDsInFolders(folderIDs []int64) ([]int64, error) {
	if len(folderIDs) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT id FROM documents WHERE folder_id IN (%s)`, placeholders(len(folderIDs)))
	rows, err := s.conn.Query(query, int64Args(folderIDs)...)
	if err != nil {
		return nil, fmt.Errorf("store: documents in folders: %w", err)
	}
	defer rows.Close()
	return collectIDs(rows)
}

// ListDocuments returns a page of documents ordered by path, plus the total
// document count.
func (s *Store) ListDocuments(limit, offset int) ([]models.Document, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	total, err := s.DocumentCount()
	if err != nil {
		return nil, 0, err
	}
	rows, err := s.conn.Query(`
		SELECT id, path, name, folder_id, modified_at, tags, token_count
		FROM documents ORDER BY path LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("store: list documents: %w", err)
	}
	defer rows.Close()
	docs, err := collectDocuments(rows)
	return docs, total, err
}

// AllDocuments returns every indexed document.
func (s *Store) AllDocuments() ([]models.Document, error) {
	rows, err := s.conn.Query(`
		SELECT id, path, name, folder_id, modified_at, tags, token_count
		FROM documents
	`)
	if err != nil {
		return nil, fmt.Errorf("store: all documents: %w", err)
	}
	defer rows.Close()
	return collectDocuments(rows)
}

// DocumentCount returns the corpus size.
func (s *Store) DocumentCount() (int, error) {
	var n int
	if err := s.conn.QueryRow(`SELECT count(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: document count: %w", err)
	}
	return n, nil
}

// AvgTokenCount returns the mean token count across all documents, or zero
// for an empty corpus.
func (s *Store) AvgTokenCount() (float64, error) {
	var avg sql.NullFloat64
	if err := s.conn.QueryRow(`SELECT AVG(token_count) FROM documents`).Scan(&avg); err != nil {
		return 0, fmt.Errorf("store: avg token count: %w", err)
	}
	return avg.Float64, nil
}

// GetChecksum returns the stored checksum for a path, or empty string when
// the path is not indexed.
func (s *Store) GetChecksum(path string) (string, error) {
	var cs string
	err := s.conn.QueryRow(`SELECT checksum FROM documents WHERE path = ?`, path).Scan(&cs)
	if err != nil {
		return "", nil // not found is fine
	}
	return cs, nil
}

// AllChecksums returns path → checksum for every indexed document.
func (s *Store) AllChecksums() (map[string]string, error) {
	rows, err := s.conn.Query(`SELECT path, checksum FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("store: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var doc models.Document
	var tagsJSON string
	var modified sql.NullTime
	if err := row.Scan(&doc.ID, &doc.Path, &doc.Name, &doc.FolderID, &modified, &tagsJSON, &doc.TokenCount); err != nil {
		return nil, err
	}
	doc.ModifiedAt = modified.Time
	_ = json.Unmarshal([]byte(tagsJSON), &doc.Tags)
	return &doc, nil
}

func collectDocuments(rows *sql.Rows) ([]models.Document, error) {
	var out []models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *doc)
	}
	return out, rows.Err()
}

func collectIDs(rows *sql.Rows) ([]int64, error) {
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
