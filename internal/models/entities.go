// Package models defines the persisted entity types for Laguz.
package models

import (
	"strings"
	"time"
)

// TermSource distinguishes where an indexed term came from.
type TermSource string

const (
	// SourceContent marks terms extracted from document content.
	SourceContent TermSource = "content"
	// SourceFilename marks terms extracted from the file name.
	SourceFilename TermSource = "filename"
)

// Document represents one indexed file in the vault.
type Document struct {
	ID         int64     `json:"id"`
	Path       string    `json:"path"`
	Name       string    `json:"name"` // file name, lowercased for matching
	FolderID   int64     `json:"folder_id"`
	ModifiedAt time.Time `json:"modified_at"`
	Tags       []string  `json:"tags,omitempty"` // legacy, superseded by properties
	TokenCount int       `json:"token_count"`    // denominator for TF normalisation
}

// Folder represents a containing directory. The synthetic root folder has
// ID 0 and an empty path.
type Folder struct {
	ID   int64  `json:"id"`
	Path string `json:"path"`
	Name string `json:"name"` // last path segment
}

// Posting records one term's occurrences in one document for one source.
// There is exactly one posting per (term, document, source); Positions has
// length Frequency and holds zero-based token indexes.
type Posting struct {
	Term       string     `json:"term"`
	DocumentID int64      `json:"document_id"`
	FolderID   int64      `json:"folder_id"`
	Source     TermSource `json:"source"`
	Frequency  int        `json:"frequency"`
	Positions  []int      `json:"positions"`
}

// Property is a key/value attribute attached to a document. Names are
// always lowercase; string values used for equality matching are lowercased
// at construction time.
type Property struct {
	ID         int64  `json:"id"`
	DocumentID int64  `json:"document_id"`
	Name       string `json:"name"`
	Value      string `json:"value"`
}

// NewProperty builds a Property with normalised name and value. Only tag
// values have a leading '#' stripped; other values are kept verbatim apart
// from trimming and lowercasing.
func NewProperty(documentID int64, name, value string) Property {
	name = strings.ToLower(strings.TrimSpace(name))
	value = strings.ToLower(strings.TrimSpace(value))
	if name == "tag" {
		value = strings.TrimPrefix(value, "#")
	}
	return Property{
		DocumentID: documentID,
		Name:       name,
		Value:      value,
	}
}

// ScoredResult decorates a Document with a relevance score. It is never
// persisted and is recomputed per query.
type ScoredResult struct {
	Document        Document `json:"document"`
	Score           float64  `json:"score"`
	KeywordsMatched []string `json:"keywords_matched,omitempty"`
}

// FileMetadata is what the vault file-system collaborator reports per file.
type FileMetadata struct {
	Path        string         `json:"path"`
	Checksum    string         `json:"checksum"`
	ModifiedAt  time.Time      `json:"modified_at"`
	Text        bool           `json:"text"` // true for Markdown/plain text files
	Frontmatter map[string]any `json:"frontmatter,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
}
