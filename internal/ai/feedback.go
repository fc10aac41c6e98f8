package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/elecsonJ/everyday-english-writing/internal/practice"
	"github.com/elecsonJ/everyday-english-writing/pkg/models"
	"go.uber.org/zap"
)

const feedbackPrompt = `You are an English teacher helping a Korean student practice English writing.

Korean sentence: "%s"
Student's English translation: "%s"

Please provide feedback in the following JSON format ONLY. Do not include any markdown formatting or code blocks:

{
  "grammarCheck": "Point out grammatical errors and explain briefly in Korean. If no errors, say '문법적으로 올바른 문장입니다.'",
  "improvedVersion": "Provide a minimally corrected English sentence that fixes errors while keeping the original structure. If no errors, return the original sentence.",
  "nativeVersion": "Provide a natural, native English sentence that conveys the same meaning, regardless of structure."
}

Important: Return ONLY the JSON object, no additional text, no markdown formatting.`

var (
	fenceOpen  = regexp.MustCompile("```(?:json)?\\s*\\n?")
	fenceClose = regexp.MustCompile("\\n?\\s*```")
	jsonObject = regexp.MustCompile(`(?s)\{.*\}`)
)

// GenerateFeedback asks the model to review a translation
func (c *ChatGPT) GenerateFeedback(ctx context.Context, korean, userInput string) (models.Feedback, error) {
	text, err := c.complete(ctx, "feedback", fmt.Sprintf(feedbackPrompt, korean, userInput), 1000, 0.3)
	if err != nil {
		return models.Feedback{}, err
	}

	fb, err := ParseFeedback(text)
	if err != nil {
		c.log.Warn("unusable feedback reply", zap.String("reply", text), zap.Error(err))
		return models.Feedback{}, err
	}
	return fb, nil
}

// CleanJSON strips markdown code fences and any text around the outermost
// JSON object of a model reply.
func CleanJSON(text string) string {
	text = strings.TrimSpace(text)
	if strings.Contains(text, "```") {
		text = fenceOpen.ReplaceAllString(text, "")
		text = fenceClose.ReplaceAllString(text, "")
	}
	if m := jsonObject.FindString(text); m != "" {
		return m
	}
	return text
}

// ParseFeedback decodes a model reply into feedback. A reply that is not
// JSON or lacks one of the three fields is reported as malformed.
func ParseFeedback(text string) (models.Feedback, error) {
	var fb models.Feedback
	if err := json.Unmarshal([]byte(CleanJSON(text)), &fb); err != nil {
		return models.Feedback{}, fmt.Errorf("%w: %v", practice.ErrMalformedFeedback, err)
	}
	if !fb.Valid() {
		return models.Feedback{}, practice.ErrMalformedFeedback
	}
	return fb, nil
}
