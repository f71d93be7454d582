package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/starford/laguz/internal/models"
)

// ReplacePostings deletes every existing posting for a document and bulk
// inserts the new set in a single transaction. Re-indexing always replaces
// postings wholesale; there is no incremental diffing.
func (s *Store) ReplacePostings(documentID int64, postings []models.Posting) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`DELETE FROM postings WHERE document_id = ?`, documentID); err != nil {
		return fmt.Errorf("store: clear postings: %w", err)
	}

	if len(postings) > 0 {
		stmt, err := tx.Prepare(`
			INSERT OR REPLACE INTO postings (term, document_id, folder_id, source, frequency, positions)
			VALUES (?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("store: prepare posting insert: %w", err)
		}
		defer stmt.Close()

		for _, p := range postings {
			positionsJSON, _ := json.Marshal(p.Positions)
			if _, err := stmt.Exec(p.Term, documentID, p.FolderID, string(p.Source), p.Frequency, string(positionsJSON)); err != nil {
				return fmt.Errorf("store: insert posting %q: %w", p.Term, err)
			}
		}
	}

	return tx.Commit()
}

// PostingsForTerms returns every posting whose term is in the given set.
// Unknown terms contribute nothing; an empty term set yields no postings.
func (s *Store) PostingsForTerms(terms []string) ([]models.Posting, error) {
	if len(terms) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`
		SELECT term, document_id, folder_id, source, frequency, positions
		FROM postings WHERE term IN (%s)
	`, placeholders(len(terms)))
	rows, err := s.conn.Query(query, stringArgs(terms)...)
	if err != nil {
		return nil, fmt.Errorf("store: postings for terms: %w", err)
	}
	defer rows.Close()
	return collectPostings(rows)
}

// PostingsForTermsInDocuments returns postings for the term set restricted
// to the given document IDs.
func (s *Store) PostingsForTermsInDocuments(terms []string, documentIDs []int64) ([]models.Posting, error) {
	if len(terms) == 0 || len(documentIDs) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`
		SELECT term, document_id, folder_id, source, frequency, positions
		FROM postings WHERE term IN (%s) AND document_id IN (%s)
	`, placeholders(len(terms)), placeholders(len(documentIDs)))
	args := append(stringArgs(terms), int64Args(documentIDs)...)
	rows, err := s.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: postings for terms in documents: %w", err)
	}
	defer rows.Close()
	return collectPostings(rows)
}

// PostingsForTermsInFolders returns postings for the term set restricted to
// documents owned by the given folders.
func (s *Store) PostingsForTermsInFolders(terms []string, folderIDs []int64) ([]models.Posting, error) {
	if len(terms) == 0 || len(folderIDs) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`
		SELECT term, document_id, folder_id, source, frequency, positions
		FROM postings WHERE term IN (%s) AND folder_id IN (%s)
	`, placeholders(len(terms)), placeholders(len(folderIDs)))
	args := append(stringArgs(terms), int64Args(folderIDs)...)
	rows, err := s.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: postings for terms in folders: %w", err)
	}
	defer rows.Close()
	return collectPostings(rows)
}

// PostingsForDocument returns every posting owned by a document.
func (s *Store) PostingsForDocument(documentID int64) ([]models.Posting, error) {
	rows, err := s.conn.Query(`
		SELECT term, document_id, folder_id, source, frequency, positions
		FROM postings WHERE document_id = ?
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("store: postings for document: %w", err)
	}
	defer rows.Close()
	return collectPostings(rows)
}

func collectPostings(rows *sql.Rows) ([]models.Posting, error) {
	var out []models.Posting
	for rows.Next() {
		var p models.Posting
		var source, positionsJSON string
		if err := rows.Scan(&p.Term, &p.DocumentID, &p.FolderID, &source, &p.Frequency, &positionsJSON); err != nil {
			return nil, err
		}
		p.Source = models.TermSource(source)
		_ = json.Unmarshal([]byte(positionsJSON), &p.Positions)
		out = append(out, p)
	}
	return out, rows.Err()
}

func stringArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}
