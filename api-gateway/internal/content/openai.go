// Package content drafts listing text from a photo using an OpenAI-compatible chat completions API.
package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	visionModel      = "gpt-4o-mini"
	descriptionModel = "gpt-4o"

	requestTimeout = 30 * time.Second

	titlePrompt       = "Say what the object is in less than 4 words (Caps first letter, no period)"
	summaryPrompt     = "Generate a concise one-sentence summary (maximum 100 characters) that captures the key features of this item for a silent auction gallery view. Focus on the most appealing or valuable aspects."
	pricePrompt       = "Suggest a fair starting price in US dollars for this item at a silent auction. Reply with the number only."
	descriptionPrompt = "Generate a detailed markdown description for an auction listing with the title %q. Cover condition, notable features and why a bidder would want it."
)

var priceRe = regexp.MustCompile(`\d+(?:\.\d+)?`)

// Suggestion holds whatever could be generated. Fields that failed are left empty.
type Suggestion struct {
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	Summary       string          `json:"summary"`
	StartingPrice decimal.Decimal `json:"starting_price"`
}

type Generator struct {
	client *openai.Client
	logger *slog.Logger
}

// New returns nil when apiKey is empty so callers can treat generation as unavailable.
func New(apiKey, baseURL string, logger *slog.Logger) *Generator {
	if apiKey == "" {
		return nil
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Generator{client: openai.NewClientWithConfig(cfg), logger: logger}
}

// Suggest drafts a listing for the image. A title supplied by the seller is kept and only used
// to write the description.
func (g *Generator) Suggest(ctx context.Context, imageURL, title string) Suggestion {
	s := Suggestion{Title: strings.TrimSpace(title)}

	if s.Title == "" {
		t, err := g.ask(ctx, visionModel, titlePrompt, imageURL, 100)
		if err != nil {
			g.logger.Warn("title generation failed", slog.String("error", err.Error()))
		}
		s.Title = t
	}

	var eg errgroup.Group

	eg.Go(func() error {
		summary, err := g.ask(ctx, visionModel, summaryPrompt, imageURL, 100)
		if err != nil {
			g.logger.Warn("summary generation failed", slog.String("error", err.Error()))
		}
		s.Summary = summary
		return nil
	})

	eg.Go(func() error {
		answer, err := g.ask(ctx, visionModel, pricePrompt, imageURL, 20)
		if err == nil {
			s.StartingPrice, err = parsePrice(answer)
		}
		if err != nil {
			g.logger.Warn("price suggestion failed", slog.String("error", err.Error()))
		}
		return nil
	})

	if s.Title != "" {
		eg.Go(func() error {
			description, err := g.ask(ctx, descriptionModel, fmt.Sprintf(descriptionPrompt, s.Title), "", 500)
			if err != nil {
				g.logger.Warn("description generation failed", slog.String("error", err.Error()))
			}
			s.Description = description
			return nil
		})
	}

	_ = eg.Wait()
	return s
}

func (g *Generator) ask(ctx context.Context, model, prompt, imageURL string, maxTokens int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	parts := []openai.ChatMessagePart{{Type: openai.ChatMessagePartTypeText, Text: prompt}}
	if imageURL != "" {
		parts = append(parts, openai.ChatMessagePart{
			Type:     openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{URL: imageURL, Detail: openai.ImageURLDetailAuto},
		})
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, MultiContent: parts}},
		MaxTokens:   maxTokens,
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", errors.New("empty completion")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// parsePrice takes the first number in the answer, rounded to cents
func parsePrice(answer string) (decimal.Decimal, error) {
	m := priceRe.FindString(strings.ReplaceAll(answer, ",", ""))
	if m == "" {
		return decimal.Zero, fmt.Errorf("no price in %q", answer)
	}

	p, err := decimal.NewFromString(m)
	if err != nil {
		return decimal.Zero, err
	}
	if !p.IsPositive() {
		return decimal.Zero, fmt.Errorf("non-positive price %s", p)
	}
	return p.Round(2), nil
}
