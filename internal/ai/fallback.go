package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/elecsonJ/everyday-english-writing/internal/practice"
	"github.com/elecsonJ/everyday-english-writing/pkg/models"
	"go.uber.org/zap"
)

// SentenceBank is the stored pool of imported Korean sentences
type SentenceBank interface {
	Random(ctx context.Context, limit int) ([]models.Sentence, error)
}

// BankSentences draws the daily sentences from the sentence bank
type BankSentences struct {
	Bank SentenceBank
}

func (b BankSentences) GenerateSentences(ctx context.Context) ([]string, error) {
	rows, err := b.Bank.Random(ctx, models.SentencesPerSession)
	if err != nil {
		return nil, fmt.Errorf("failed to read sentence bank: %w", err)
	}
	if len(rows) < models.SentencesPerSession {
		return nil, fmt.Errorf("%w: sentence bank holds %d sentences", practice.ErrMalformedSentences, len(rows))
	}

	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Korean
	}
	return out, nil
}

// Fallback tries each generator in order and returns the first usable list
type Fallback struct {
	Generators []practice.SentenceGenerator
	Log        *zap.Logger
}

func (f Fallback) GenerateSentences(ctx context.Context) ([]string, error) {
	var errs []error
	for i, g := range f.Generators {
		sentences, err := g.GenerateSentences(ctx)
		if err == nil {
			return sentences, nil
		}
		if f.Log != nil {
			f.Log.Warn("sentence source failed", zap.Int("source", i), zap.Error(err))
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return nil, errors.New("no sentence source configured")
	}
	return nil, errors.Join(errs...)
}
