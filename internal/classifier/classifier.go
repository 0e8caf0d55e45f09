package classifier

import (
	"errors"
	"time"

	"github.com/caserag/ragengine/internal/storage/models"
)

// ErrEmptyContent is returned when a document has no resolvable content.
// Callers decide the fallback; classification never defaults silently.
var ErrEmptyContent = errors.New("document content is empty")

const (
	DefaultSmallThreshold  = 20000
	DefaultMediumThreshold = 60000
)

type Classifier struct {
	smallThreshold  int
	mediumThreshold int
}

func New(smallThreshold, mediumThreshold int) *Classifier {
	if smallThreshold <= 0 {
		smallThreshold = DefaultSmallThreshold
	}
	if mediumThreshold <= smallThreshold {
		mediumThreshold = DefaultMediumThreshold
	}
	return &Classifier{
		smallThreshold:  smallThreshold,
		mediumThreshold: mediumThreshold,
	}
}

// Classify is a pure function of content length: safe to call repeatedly
// as content is re-processed.
func (c *Classifier) Classify(content string) (models.SizeCategory, models.Strategy, error) {
	if len(content) == 0 {
		return "", "", ErrEmptyContent
	}

	switch {
	case len(content) < c.smallThreshold:
		return models.SizeSmall, models.StrategyDirectLLM, nil
	case len(content) < c.mediumThreshold:
		return models.SizeMedium, models.StrategyHybrid, nil
	default:
		return models.SizeLarge, models.StrategyFullRAG, nil
	}
}

// Priority ranks enrichment scheduling; higher runs first.
func Priority(category models.SizeCategory) int {
	switch category {
	case models.SizeSmall:
		return 3
	case models.SizeMedium:
		return 2
	default:
		return 1
	}
}

// ScheduleDelay staggers enrichment so small documents become fully
// searchable fastest.
func ScheduleDelay(category models.SizeCategory) time.Duration {
	switch category {
	case models.SizeSmall:
		return 1 * time.Second
	case models.SizeMedium:
		return 5 * time.Second
	default:
		return 10 * time.Second
	}
}
