// Package suggest wraps the AI completion service that proposes items to
// add and classifies item names into categories. Every failure here is
// cosmetic: calls degrade to "no suggestions" or CategoryOther and are never
// propagated to callers.
package suggest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/liushuangls/go-anthropic/v2"

	"github.com/vbonduro/freshcart/internal/domain"
)

// suggestionLimit caps how many candidates one request may return.
const suggestionLimit = 5

// requestTimeout bounds every model call. A hung call must expire into the
// normal degrade path, not block the caller.
const requestTimeout = 30 * time.Second

// Candidate is a proposed, not-yet-persisted item.
type Candidate struct {
	Name     string          `json:"name"`
	Category domain.Category `json:"category"`
}

type Client struct {
	api     *anthropic.Client
	model   anthropic.Model
	timeout time.Duration
	logger  *slog.Logger
}

func NewClient(apiKey, model string, logger *slog.Logger, opts ...anthropic.ClientOption) *Client {
	return &Client{
		api:     anthropic.NewClient(apiKey, opts...),
		model:   anthropic.Model(model),
		timeout: requestTimeout,
		logger:  logger,
	}
}

func suggestionPrompt(existingNames []string) string {
	var sb strings.Builder
	sb.WriteString("Based on these grocery items: [")
	sb.WriteString(strings.Join(existingNames, ", "))
	sb.WriteString(fmt.Sprintf("], suggest %d more items that would complement them or are commonly forgotten essentials.\n", suggestionLimit))
	sb.WriteString("Respond with ONLY a JSON array of objects, each with a \"name\" and a \"category\" field.\n")
	sb.WriteString("The category must be one of: ")
	sb.WriteString(categoryList())
	sb.WriteString(".")
	return sb.String()
}

func categorizePrompt(itemName string) string {
	return fmt.Sprintf(
		"What grocery category does %q belong to? Reply with ONLY the category name from this list: %s.",
		itemName, categoryList())
}

func categoryList() string {
	names := make([]string, 0, len(domain.Categories))
	for _, c := range domain.Categories {
		names = append(names, string(c))
	}
	return strings.Join(names, ", ")
}

// SuggestItems asks the model for up to suggestionLimit complementary items.
// Any transport or parse failure is logged and swallowed; the caller sees an
// empty slice.
func (c *Client) SuggestItems(ctx context.Context, existingNames []string) []Candidate {
	text, err := c.complete(ctx, suggestionPrompt(existingNames))
	if err != nil {
		c.logger.Error("suggestion request failed", "error", err)
		return nil
	}

	candidates, err := ParseSuggestions(text)
	if err != nil {
		c.logger.Error("suggestion response unparsable", "error", err)
		return nil
	}
	return candidates
}

// Categorize classifies a single item name. Empty, unparsable, or failed
// responses fall back to CategoryOther.
func (c *Client) Categorize(ctx context.Context, itemName string) domain.Category {
	text, err := c.complete(ctx, categorizePrompt(itemName))
	if err != nil {
		c.logger.Error("categorize request failed", "item", itemName, "error", err)
		return domain.CategoryOther
	}
	return domain.ParseCategory(text)
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     c.model,
		MaxTokens: 512,
		Messages: []anthropic.Message{
			anthropic.NewUserTextMessage(prompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to call model: %w", err)
	}
	return resp.GetFirstContentText(), nil
}
