package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/araddon/dateparse"

	"github.com/starford/laguz/internal/models"
)

// Comparison operators accepted by DocumentIDsWithProperty.
const (
	OpEquals       = "=="
	OpNotEquals    = "!="
	OpLess         = "<"
	OpLessEqual    = "<="
	OpGreater      = ">"
	OpGreaterEqual = ">="
)

// ReplaceProperties deletes all existing properties for a document and
// inserts the new set in one transaction, mirroring posting replacement.
// Each value's numeric form (number or parsed date, as epoch seconds) is
// stored alongside it so ordered comparisons can use the compound index.
func (s *Store) ReplaceProperties(documentID int64, props []models.Property) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`DELETE FROM properties WHERE document_id = ?`, documentID); err != nil {
		return fmt.Errorf("store: clear properties: %w", err)
	}

	if len(props) > 0 {
		stmt, err := tx.Prepare(`
			INSERT INTO properties (document_id, name, value, num_value) VALUES (?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("store: prepare property insert: %w", err)
		}
		defer stmt.Close()

		for _, p := range props {
			var num any
			if f, ok := numericForm(p.Value); ok {
				num = f
			}
			if _, err := stmt.Exec(documentID, p.Name, p.Value, num); err != nil {
				return fmt.Errorf("store: insert property %q: %w", p.Name, err)
			}
		}
	}

	return tx.Commit()
}

// PropertiesForDocument returns every property attached to a document.
func (s *Store) PropertiesForDocument(documentID int64) ([]models.Property, error) {
	rows, err := s.conn.Query(`
		SELECT id, document_id, name, value FROM properties WHERE document_id = ?
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("store: properties for document: %w", err)
	}
	defer rows.Close()

	var out []models.Property
	for rows.Next() {
		var p models.Property
		if err := rows.Scan(&p.ID, &p.DocumentID, &p.Name, &p.Value); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DocumentIDsWithProperty returns the IDs of documents carrying a property
// that satisfies (name, operator, value).
//
// Equality probes both representations: a numeric-looking query also matches
// values stored as numbers and vice versa, and date-looking values (natural
// language or ISO-8601) are compared through their parsed form. Ordered
// operators use range scans over the numeric form; a query value that has no
// numeric or date form yields an empty result with a logged warning, never
// an error.
func (s *Store) DocumentIDsWithProperty(name, value, operator string) ([]int64, error) {
	prop := models.NewProperty(0, name, value)
	if operator == "" {
		operator = OpEquals
	}

	switch operator {
	case OpEquals:
		return s.propertyEquals(prop.Name, prop.Value)
	case OpNotEquals:
		return s.propertyNotEquals(prop.Name, prop.Value)
	case OpLess, OpLessEqual, OpGreater, OpGreaterEqual:
		num, ok := numericForm(prop.Value)
		if !ok {
			s.logger.Warn("store: comparison on non-numeric, non-date value",
				slog.String("name", prop.Name),
				slog.String("value", prop.Value),
				slog.String("operator", operator))
			return nil, nil
		}
		query := fmt.Sprintf(`
			SELECT DISTINCT document_id FROM properties
			WHERE name = ? AND num_value IS NOT NULL AND num_value %s ?
		`, operator)
		rows, err := s.conn.Query(query, prop.Name, num)
		if err != nil {
			return nil, fmt.Errorf("store: property range scan: %w", err)
		}
		defer rows.Close()
		return collectIDs(rows)
	default:
		return nil, fmt.Errorf("store: unknown property operator %q", operator)
	}
}

func (s *Store) propertyEquals(name, value string) ([]int64, error) {
	var rows *sql.Rows
	var err error
	if num, ok := numericForm(value); ok {
		rows, err = s.conn.Query(`
			SELECT DISTINCT document_id FROM properties
			WHERE name = ? AND (value = ? OR num_value = ?)
		`, name, value, num)
	} else {
		rows, err = s.conn.Query(`
			SELECT DISTINCT document_id FROM properties
			WHERE name = ? AND value = ?
		`, name, value)
	}
	if err != nil {
		return nil, fmt.Errorf("store: property equality: %w", err)
	}
	defer rows.Close()
	return collectIDs(rows)
}

// propertyNotEquals is a linear scan with numeric coercion: each stored
// value is compared numerically when both sides have a numeric form, and as
// a string otherwise.
func (s *Store) propertyNotEquals(name, value string) ([]int64, error) {
	rows, err := s.conn.Query(`SELECT document_id, value FROM properties WHERE name = ?`, name)
	if err != nil {
		return nil, fmt.Errorf("store: property scan: %w", err)
	}
	defer rows.Close()

	queryNum, queryNumeric := numericForm(value)

	seen := make(map[int64]struct{})
	var out []int64
	for rows.Next() {
		var id int64
		var stored string
		if err := rows.Scan(&id, &stored); err != nil {
			return nil, err
		}
		equal := stored == value
		if !equal && queryNumeric {
			if storedNum, ok := numericForm(stored); ok {
				equal = storedNum == queryNum
			}
		}
		if equal {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, rows.Err()
}

// numericForm resolves a property value to a comparable float64: plain
// numbers parse directly, anything date-like (ISO-8601 or natural language
// that dateparse understands) becomes epoch seconds.
func numericForm(value string) (float64, bool) {
	if value == "" {
		return 0, false
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f, true
	}
	if t, ok := relativeDay(value); ok {
		return float64(t.Unix()), true
	}
	if t, err := dateparse.ParseAny(value); err == nil {
		return float64(t.Unix()), true
	}
	return 0, false
}

// relativeDay resolves the handful of natural-language day words dateparse
// does not cover, anchored at local midnight.
func relativeDay(value string) (time.Time, bool) {
	midnight := func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	}
	now := time.Now()
	switch value {
	case "today":
		return midnight(now), true
	case "yesterday":
		return midnight(now.AddDate(0, 0, -1)), true
	case "tomorrow":
		return midnight(now.AddDate(0, 0, 1)), true
	}
	return time.Time{}, false
}
