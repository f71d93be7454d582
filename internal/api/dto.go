package api

import (
	"github.com/starford/laguz/internal/models"
	"github.com/starford/laguz/internal/search"
)

// SearchRequest is the request body for POST /search.
type SearchRequest struct {
	Operations []search.Operation `json:"operations" validate:"required"`
	Page       int                `json:"page" example:"1"`
	Limit      int                `json:"limit" example:"10"`
}

// SearchResponse wraps one page of ranked results.
type SearchResponse = search.Page

// DocumentListResponse wraps paginated document listings.
type DocumentListResponse struct {
	Documents []models.Document `json:"documents" validate:"required"`
	Total     int               `json:"total" example:"42" validate:"required"`
}

// DocumentResponse is a single indexed document with its properties and,
// for text files, its raw content.
type DocumentResponse struct {
	Document   models.Document   `json:"document"`
	Properties []models.Property `json:"properties,omitempty"`
	Content    string            `json:"content,omitempty"`
}

// StatsResponse reports corpus-level index statistics.
type StatsResponse = search.Stats
