package content

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"messages"`
}

// newServer answers each prompt through reply; an empty answer becomes a 500.
func newServer(t *testing.T, reply func(prompt string) string) *Generator {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) == 0 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		answer := reply(req.Messages[0].Content[0].Text)
		if answer == "" {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"id":"c1","object":"chat.completion","created":1,"model":%q,
			"choices":[{"index":0,"message":{"role":"assistant","content":%q},"finish_reason":"stop"}]}`,
			req.Model, answer)
	}))
	t.Cleanup(srv.Close)

	return New("test-key", srv.URL+"/v1", nil)
}

func TestNewWithoutKey(t *testing.T) {
	assert.Nil(t, New("", "", nil))
}

func TestSuggest(t *testing.T) {
	g := newServer(t, func(prompt string) string {
		switch {
		case strings.HasPrefix(prompt, "Say what"):
			return "Vintage Camera"
		case strings.Contains(prompt, "one-sentence summary"):
			return "A classic film camera in great shape."
		case strings.Contains(prompt, "starting price"):
			return "About $1,250.499"
		case strings.Contains(prompt, `"Vintage Camera"`):
			return "## Vintage Camera\nGreat condition."
		}
		return ""
	})

	s := g.Suggest(context.Background(), "https://img.example.com/cam.jpg", "")

	assert.Equal(t, "Vintage Camera", s.Title)
	assert.Equal(t, "A classic film camera in great shape.", s.Summary)
	assert.Equal(t, "## Vintage Camera\nGreat condition.", s.Description)
	assert.True(t, s.StartingPrice.Equal(decimal.RequireFromString("1250.50")), s.StartingPrice.String())
}

func TestSuggestKeepsSellerTitle(t *testing.T) {
	g := newServer(t, func(prompt string) string {
		if strings.Contains(prompt, `"Leica M3"`) {
			return "A rangefinder."
		}
		if strings.HasPrefix(prompt, "Say what") {
			return "Camera"
		}
		return ""
	})

	s := g.Suggest(context.Background(), "https://img.example.com/cam.jpg", "Leica M3")

	assert.Equal(t, "Leica M3", s.Title)
	assert.Equal(t, "A rangefinder.", s.Description)
}

func TestSuggestDegrades(t *testing.T) {
	g := newServer(t, func(string) string { return "" })

	s := g.Suggest(context.Background(), "https://img.example.com/cam.jpg", "")

	assert.Empty(t, s.Title)
	assert.Empty(t, s.Summary)
	assert.Empty(t, s.Description)
	assert.True(t, s.StartingPrice.IsZero())
}

func TestParsePrice(t *testing.T) {
	p, err := parsePrice("$45")
	require.NoError(t, err)
	assert.True(t, p.Equal(decimal.RequireFromString("45")))

	_, err = parsePrice("no idea")
	assert.Error(t, err)

	_, err = parsePrice("0")
	assert.Error(t, err)
}
