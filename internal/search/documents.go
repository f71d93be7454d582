package search

import (
	"github.com/starford/laguz/internal/models"
)

// Stats summarises the state of the index.
type Stats struct {
	Documents     int     `json:"documents"`
	AvgTokenCount float64 `json:"avg_token_count"`
	SchemaVersion int     `json:"schema_version"`
}

// Stats reports corpus-level index statistics.
func (s *Service) Stats() (Stats, error) {
	n, err := s.store.DocumentCount()
	if err != nil {
		return Stats{}, err
	}
	avg, err := s.store.AvgTokenCount()
	if err != nil {
		return Stats{}, err
	}
	version, err := s.store.SchemaVersion()
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Documents:     n,
		AvgTokenCount: avg,
		SchemaVersion: version,
	}, nil
}

// DocumentDetail is a document together with its stored properties.
type DocumentDetail struct {
	Document   models.Document   `json:"document"`
	Properties []models.Property `json:"properties,omitempty"`
}

// GetDocument returns one indexed document with its properties, or nil
// when the path is not indexed.
func (s *Service) GetDocument(path string) (*DocumentDetail, error) {
	doc, err := s.store.GetDocumentByPath(path)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}
	props, err := s.store.PropertiesForDocument(doc.ID)
	if err != nil {
		return nil, err
	}
	return &DocumentDetail{Document: *doc, Properties: props}, nil
}

// ListDocuments returns one page of indexed documents with the total count.
func (s *Service) ListDocuments(limit, offset int) ([]models.Document, int, error) {
	return s.store.ListDocuments(limit, offset)
}
