package suggest

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/vbonduro/freshcart/internal/domain"
)

// ParseSuggestions extracts the JSON array of {name, category} candidates
// from a model response. Models sometimes wrap the array in code fences or
// preamble text, so parsing starts at the first '[' and ends at the last
// ']'. Candidate names must be non-empty; categories are coerced through the
// closed enumeration; at most suggestionLimit candidates survive.
func ParseSuggestions(raw string) ([]Candidate, error) {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start < 0 || end < start {
		return nil, errors.New("no JSON array in response")
	}

	var parsed []struct {
		Name     string `json:"name"`
		Category string `json:"category"`
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), &parsed); err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(parsed))
	for _, p := range parsed {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			continue
		}
		candidates = append(candidates, Candidate{
			Name:     name,
			Category: domain.ParseCategory(p.Category),
		})
		if len(candidates) == suggestionLimit {
			break
		}
	}
	return candidates, nil
}
