// Package view derives the rendered list from the authoritative collection.
// Everything here is a pure function of its inputs; the collection itself is
// never mutated and results are recomputed on every call.
package view

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/vbonduro/freshcart/internal/domain"
)

type Filter string

const (
	FilterAll       Filter = "all"
	FilterPending   Filter = "pending"
	FilterPurchased Filter = "purchased"
)

type Sort string

const (
	SortDate         Sort = "date" // default: newest first
	SortAlphabetical Sort = "alphabetical"
	SortCategory     Sort = "category"
)

// Counts are aggregate totals over the unfiltered collection.
type Counts struct {
	Total     int
	Pending   int
	Purchased int
}

// Project returns the filtered, sorted slice of items to render. Search is a
// case-insensitive substring match on name or note; sorting is stable so
// equal keys keep their collection order.
func Project(items []domain.GroceryItem, search string, filter Filter, sortBy Sort) []domain.GroceryItem {
	needle := strings.ToLower(search)

	result := make([]domain.GroceryItem, 0, len(items))
	for _, item := range items {
		if !matchesSearch(item, needle) {
			continue
		}
		if !matchesFilter(item, filter) {
			continue
		}
		result = append(result, item)
	}

	switch sortBy {
	case SortAlphabetical:
		c := collate.New(language.English)
		sort.SliceStable(result, func(i, j int) bool {
			return c.CompareString(result[i].Name, result[j].Name) < 0
		})
	case SortCategory:
		c := collate.New(language.English)
		sort.SliceStable(result, func(i, j int) bool {
			return c.CompareString(string(result[i].Category), string(result[j].Category)) < 0
		})
	default:
		sort.SliceStable(result, func(i, j int) bool {
			return result[i].CreatedAt > result[j].CreatedAt
		})
	}

	return result
}

// Count derives the aggregate totals, independent of search/filter/sort.
func Count(items []domain.GroceryItem) Counts {
	c := Counts{Total: len(items)}
	for _, item := range items {
		if item.IsPurchased {
			c.Purchased++
		} else {
			c.Pending++
		}
	}
	return c
}

func matchesSearch(item domain.GroceryItem, needle string) bool {
	if needle == "" {
		return true
	}
	if strings.Contains(strings.ToLower(item.Name), needle) {
		return true
	}
	return item.Note != nil && strings.Contains(strings.ToLower(*item.Note), needle)
}

func matchesFilter(item domain.GroceryItem, filter Filter) bool {
	switch filter {
	case FilterPurchased:
		return item.IsPurchased
	case FilterPending:
		return !item.IsPurchased
	default:
		return true
	}
}
