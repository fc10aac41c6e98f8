package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"

	"github.com/elecsonJ/everyday-english-writing/internal/practice"
	"github.com/elecsonJ/everyday-english-writing/pkg/models"
	"go.uber.org/zap"
)

// Topics the daily sentences are drawn from
var Topics = []string{
	"일상 생활",
	"업무/비즈니스",
	"여행",
	"감정 표현",
	"의견 제시",
	"계획/미래",
	"과거 경험",
	"가족/친구",
	"취미",
	"음식/요리",
}

const sentencesPrompt = `Generate 3 Korean sentences for English writing practice.
Topic: %s
Level: Intermediate

Requirements:
- Sentences should be practical and commonly used in daily life
- Each sentence should be different in structure (statement, question, suggestion, etc.)
- Length: 10-20 Korean words per sentence
- Include various grammar patterns

Respond in JSON format:
{
  "sentences": [
    "Korean sentence 1",
    "Korean sentence 2",
    "Korean sentence 3"
  ]
}`

// GenerateSentences asks the model for today's three Korean sentences on a
// random topic.
func (c *ChatGPT) GenerateSentences(ctx context.Context) ([]string, error) {
	topic := Topics[rand.Intn(len(Topics))]

	text, err := c.complete(ctx, "sentences", fmt.Sprintf(sentencesPrompt, topic), 500, 0.7)
	if err != nil {
		return nil, err
	}

	sentences, err := ParseSentences(text)
	if err != nil {
		c.log.Warn("unusable sentence reply", zap.String("topic", topic), zap.String("reply", text), zap.Error(err))
		return nil, err
	}
	return sentences, nil
}

// ParseSentences decodes {"sentences": [...]} and requires exactly three
// non-empty entries.
func ParseSentences(text string) ([]string, error) {
	var payload struct {
		Sentences []string `json:"sentences"`
	}
	if err := json.Unmarshal([]byte(CleanJSON(text)), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", practice.ErrMalformedSentences, err)
	}
	if len(payload.Sentences) != models.SentencesPerSession {
		return nil, fmt.Errorf("%w: got %d sentences", practice.ErrMalformedSentences, len(payload.Sentences))
	}

	out := make([]string, len(payload.Sentences))
	for i, s := range payload.Sentences {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, fmt.Errorf("%w: sentence %d is empty", practice.ErrMalformedSentences, i+1)
		}
		out[i] = s
	}
	return out, nil
}
