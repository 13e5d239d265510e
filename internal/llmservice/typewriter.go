package llmservice

import (
	"context"
	"regexp"
	"time"

	"document-qa/internal/models"
)

var wordRe = regexp.MustCompile(`\S+\s*`)

// Typewriter replays a finished answer word by word with a fixed delay
// between words. Concatenating the fragments gives back text exactly.
func Typewriter(ctx context.Context, text string, delay time.Duration) *Stream {
	return newStream(ctx, func(ctx context.Context, emit func(string) error) *models.Failure {
		locs := wordRe.FindAllStringIndex(text, -1)
		if len(locs) == 0 {
			if text != "" {
				_ = emit(text)
			}
			return nil
		}

		prev := 0
		for i, loc := range locs {
			if i > 0 && delay > 0 {
				timer := time.NewTimer(delay)
				select {
				case <-ctx.Done():
					timer.Stop()
					return nil
				case <-timer.C:
				}
			}
			if err := emit(text[prev:loc[1]]); err != nil {
				return nil
			}
			prev = loc[1]
		}
		return nil
	})
}
