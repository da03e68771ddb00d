package scoring

import (
	"context"
	"errors"

	"github.com/cachesim/cachesim/pkg/models"
)

// ErrAllProvidersFailed is returned when no provider produced a judgment.
var ErrAllProvidersFailed = errors.New("all scoring providers failed")

// Scorer produces a quality judgment for a question record. Scoring is
// the expensive operation a cache hit avoids.
type Scorer interface {
	Score(ctx context.Context, rec models.Record) (models.Judgment, error)
}
