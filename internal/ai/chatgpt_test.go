package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/elecsonJ/everyday-english-writing/internal/config"
	"github.com/elecsonJ/everyday-english-writing/internal/practice"
	"github.com/elecsonJ/everyday-english-writing/pkg/models"
)

func replyServer(t *testing.T, status int, content string, seen *ChatRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		if seen != nil {
			if err := json.NewDecoder(r.Body).Decode(seen); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}
		w.WriteHeader(status)
		if status != http.StatusOK {
			w.Write([]byte(`{"error":{"message":"overloaded"}}`))
			return
		}
		resp := map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": content}}},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, url string) *ChatGPT {
	t.Helper()
	c, err := New(config.AIConfig{BaseURL: url + "/", APIKey: "test-key", Model: "test-model", Timeout: 5 * time.Second}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNew_RequiresAPIKey(t *testing.T) {
	if _, err := New(config.AIConfig{BaseURL: "http://localhost"}, nil); err == nil {
		t.Fatalf("expected error without API key")
	}
}

func TestGenerateFeedback(t *testing.T) {
	reply := "```json\n{\"grammarCheck\":\"문법적으로 올바른 문장입니다.\",\"improvedVersion\":\"I ate lunch.\",\"nativeVersion\":\"I had lunch.\"}\n```"
	var seen ChatRequest
	srv := replyServer(t, http.StatusOK, reply, &seen)
	c := newTestClient(t, srv.URL)

	fb, err := c.GenerateFeedback(context.Background(), "점심을 먹었다.", "I eat lunch.")
	if err != nil {
		t.Fatalf("GenerateFeedback: %v", err)
	}
	if fb.ImprovedVersion != "I ate lunch." || fb.NativeVersion != "I had lunch." {
		t.Fatalf("unexpected feedback: %+v", fb)
	}
	if seen.Model != "test-model" || seen.MaxTokens != 1000 || seen.Temperature != 0.3 {
		t.Fatalf("unexpected request: %+v", seen)
	}
	if len(seen.Messages) != 1 || !strings.Contains(seen.Messages[0].Content, "I eat lunch.") {
		t.Fatalf("prompt does not carry the translation: %+v", seen.Messages)
	}
}

func TestGenerateFeedback_MissingField(t *testing.T) {
	srv := replyServer(t, http.StatusOK, `{"grammarCheck":"ok","improvedVersion":"I ate."}`, nil)
	c := newTestClient(t, srv.URL)

	_, err := c.GenerateFeedback(context.Background(), "가", "x")
	if !errors.Is(err, practice.ErrMalformedFeedback) {
		t.Fatalf("expected ErrMalformedFeedback, got %v", err)
	}
}

func TestGenerateFeedback_HTTPError(t *testing.T) {
	srv := replyServer(t, http.StatusServiceUnavailable, "", nil)
	c := newTestClient(t, srv.URL)

	_, err := c.GenerateFeedback(context.Background(), "가", "x")
	if err == nil || errors.Is(err, practice.ErrMalformedFeedback) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if !strings.Contains(err.Error(), "503") {
		t.Fatalf("status missing from error: %v", err)
	}
}

func TestGenerateSentences(t *testing.T) {
	var seen ChatRequest
	srv := replyServer(t, http.StatusOK, `Here you go: {"sentences": ["하나", " 둘 ", "셋"]}`, &seen)
	c := newTestClient(t, srv.URL)

	got, err := c.GenerateSentences(context.Background())
	if err != nil {
		t.Fatalf("GenerateSentences: %v", err)
	}
	if len(got) != 3 || got[1] != "둘" {
		t.Fatalf("unexpected sentences: %q", got)
	}
	if seen.MaxTokens != 500 || seen.Temperature != 0.7 {
		t.Fatalf("unexpected request: %+v", seen)
	}
	found := false
	for _, topic := range Topics {
		if strings.Contains(seen.Messages[0].Content, "Topic: "+topic) {
			found = true
		}
	}
	if !found {
		t.Fatalf("prompt has no known topic: %s", seen.Messages[0].Content)
	}
}

func TestParseSentences_Invalid(t *testing.T) {
	cases := []string{
		`not json`,
		`{"sentences": ["하나", "둘"]}`,
		`{"sentences": ["하나", "둘", "셋", "넷"]}`,
		`{"sentences": ["하나", "  ", "셋"]}`,
	}
	for _, text := range cases {
		if _, err := ParseSentences(text); !errors.Is(err, practice.ErrMalformedSentences) {
			t.Fatalf("ParseSentences(%q) = %v", text, err)
		}
	}
}

func TestCleanJSON(t *testing.T) {
	cases := map[string]string{
		"```json\n{\"a\":1}\n```": `{"a":1}`,
		"```\n{\"a\":1}\n```":     `{"a":1}`,
		"Sure! {\"a\":1} Done.":   `{"a":1}`,
		`{"a":{"b":2}}`:           `{"a":{"b":2}}`,
	}
	for in, want := range cases {
		if got := CleanJSON(in); got != want {
			t.Fatalf("CleanJSON(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestContextCancelled(t *testing.T) {
	srv := replyServer(t, http.StatusOK, `{"sentences":["a","b","c"]}`, nil)
	c := newTestClient(t, srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.GenerateSentences(ctx); err == nil {
		t.Fatalf("expected error for cancelled context")
	}
}

type stubBank struct {
	rows []models.Sentence
	err  error
}

func (b stubBank) Random(ctx context.Context, limit int) ([]models.Sentence, error) {
	if len(b.rows) > limit {
		return b.rows[:limit], b.err
	}
	return b.rows, b.err
}

type stubGenerator struct {
	sentences []string
	err       error
}

func (g stubGenerator) GenerateSentences(ctx context.Context) ([]string, error) {
	return g.sentences, g.err
}

func TestBankSentences(t *testing.T) {
	bank := stubBank{rows: []models.Sentence{{Korean: "가"}, {Korean: "나"}, {Korean: "다"}, {Korean: "라"}}}
	got, err := BankSentences{Bank: bank}.GenerateSentences(context.Background())
	if err != nil || len(got) != 3 || got[0] != "가" {
		t.Fatalf("got %q, %v", got, err)
	}

	small := stubBank{rows: []models.Sentence{{Korean: "가"}}}
	if _, err := (BankSentences{Bank: small}).GenerateSentences(context.Background()); !errors.Is(err, practice.ErrMalformedSentences) {
		t.Fatalf("expected ErrMalformedSentences, got %v", err)
	}
}

func TestFallback(t *testing.T) {
	f := Fallback{Generators: []practice.SentenceGenerator{
		stubGenerator{err: errors.New("model down")},
		stubGenerator{sentences: []string{"가", "나", "다"}},
	}}
	got, err := f.GenerateSentences(context.Background())
	if err != nil || got[2] != "다" {
		t.Fatalf("got %q, %v", got, err)
	}

	down := errors.New("model down")
	f = Fallback{Generators: []practice.SentenceGenerator{stubGenerator{err: down}}}
	if _, err := f.GenerateSentences(context.Background()); !errors.Is(err, down) {
		t.Fatalf("expected joined error, got %v", err)
	}

	if _, err := (Fallback{}).GenerateSentences(context.Background()); err == nil {
		t.Fatalf("expected error with no sources")
	}
}
