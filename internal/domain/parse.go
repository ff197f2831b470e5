package domain

import (
	"errors"
	"strings"
)

// ErrInvalidRecord marks a store row that cannot be materialized. Callers
// drop the row and log an aggregate count rather than surfacing it per-item.
var ErrInvalidRecord = errors.New("invalid record")

// ParseCategory maps a raw category string to the closed enumeration.
// Matching is exact after trimming; anything unrecognized becomes Other.
func ParseCategory(raw string) Category {
	trimmed := strings.TrimSpace(raw)
	for _, c := range Categories {
		if string(c) == trimmed {
			return c
		}
	}
	return CategoryOther
}

// ParseRecord validates and normalizes a raw store row into a GroceryItem.
// An empty or absent id or name is a hard failure: coercing it would render
// an uneditable phantom item. A malformed category degrades to Other and a
// missing note stays nil.
func ParseRecord(rec Record) (GroceryItem, error) {
	if strings.TrimSpace(rec.ID) == "" {
		return GroceryItem{}, errors.Join(ErrInvalidRecord, errors.New("missing id"))
	}
	if strings.TrimSpace(rec.Name) == "" {
		return GroceryItem{}, errors.Join(ErrInvalidRecord, errors.New("missing name"))
	}

	return GroceryItem{
		ID:          rec.ID,
		Name:        rec.Name,
		Note:        rec.Note,
		Category:    ParseCategory(rec.Category),
		IsPurchased: rec.IsPurchased,
		CreatedAt:   rec.CreatedAt,
		UserID:      rec.UserID,
	}, nil
}
