package store

import (
	"database/sql"
	"fmt"
	"path"
	"strings"

	"github.com/starford/laguz/internal/models"
)

// RootFolderID is the ID of the synthetic root folder (empty path).
const RootFolderID int64 = 0

// GetOrCreateFolder resolves the folder row for a directory path, creating
// it lazily on first use. The empty path maps to the root folder.
func (s *Store) GetOrCreateFolder(folderPath string) (models.Folder, error) {
	folderPath = strings.Trim(folderPath, "/")
	if folderPath == "" || folderPath == "." {
		return models.Folder{ID: RootFolderID, Path: "", Name: ""}, nil
	}

	name := path.Base(folderPath)
	if _, err := s.conn.Exec(`
		INSERT OR IGNORE INTO folders (path, name) VALUES (?, ?)
	`, folderPath, name); err != nil {
		return models.Folder{}, fmt.Errorf("store: create folder: %w", err)
	}

	var f models.Folder
	err := s.conn.QueryRow(`SELECT id, path, name FROM folders WHERE path = ?`, folderPath).
		Scan(&f.ID, &f.Path, &f.Name)
	if err != nil {
		return models.Folder{}, fmt.Errorf("store: get folder: %w", err)
	}
	return f, nil
}

// GetFolder returns the folder at path, or nil when it does not exist.
func (s *Store) GetFolder(folderPath string) (*models.Folder, error) {
	folderPath = strings.Trim(folderPath, "/")
	var f models.Folder
	err := s.conn.QueryRow(`SELECT id, path, name FROM folders WHERE path = ?`, folderPath).
		Scan(&f.ID, &f.Path, &f.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get folder: %w", err)
	}
	return &f, nil
}

// FoldersMatching returns every folder whose name or path contains any of
// the given patterns, case-insensitively. Unknown patterns simply match
// nothing.
func (s *Store) FoldersMatching(patterns []string) ([]models.Folder, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	rows, err := s.conn.Query(`SELECT id, path, name FROM folders`)
	if err != nil {
		return nil, fmt.Errorf("store: list folders: %w", err)
	}
	defer rows.Close()

	lowered := make([]string, len(patterns))
	for i, p := range patterns {
		lowered[i] = strings.ToLower(strings.Trim(p, "/"))
	}

	var out []models.Folder
	for rows.Next() {
		var f models.Folder
		if err := rows.Scan(&f.ID, &f.Path, &f.Name); err != nil {
			return nil, err
		}
		name := strings.ToLower(f.Name)
		fpath := strings.ToLower(f.Path)
		for _, p := range lowered {
			if p == "" {
				continue
			}
			if strings.Contains(name, p) || strings.Contains(fpath, p) {
				out = append(out, f)
				break
			}
		}
	}
	return out, rows.Err()
}

// DeleteFolderIfEmpty removes a folder row when no documents reference it.
// Best effort: empty-folder cleanup is an optimisation, not a correctness
// requirement, and the root folder is never removed.
func (s *Store) DeleteFolderIfEmpty(id int64) error {
	if id == RootFolderID {
		return nil
	}
	var n int
	if err := s.conn.QueryRow(`SELECT count(*) FROM documents WHERE folder_id = ?`, id).Scan(&n); err != nil {
		return fmt.Errorf("store: count folder documents: %w", err)
	}
	if n > 0 {
		return nil
	}
	if _, err := s.conn.Exec(`DELETE FROM folders WHERE id = ?`, id); err != nil {
		return fmt.Errorf("store: delete folder: %w", err)
	}
	return nil
}
