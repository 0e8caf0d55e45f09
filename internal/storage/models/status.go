package models

import "fmt"

// Status is the document lifecycle state. The only legal forward path is
// uploaded -> processing -> processed -> enhanced; any non-terminal state
// may drop to failed.
type Status string

const (
	StatusUploaded   Status = "uploaded"
	StatusProcessing Status = "processing"
	StatusProcessed  Status = "processed"
	StatusEnhanced   Status = "enhanced"
	StatusFailed     Status = "failed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusUploaded, StatusProcessing, StatusProcessed, StatusEnhanced, StatusFailed:
		return true
	}
	return false
}

func (s Status) CanTransition(next Status) bool {
	if next == StatusFailed {
		return s != StatusFailed
	}
	switch s {
	case StatusUploaded:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusProcessed
	case StatusProcessed:
		return next == StatusEnhanced
	}
	return false
}

// Searchable reports whether retrieval may include the document's chunks.
func (s Status) Searchable() bool {
	return s == StatusProcessed || s == StatusEnhanced
}

type IllegalTransitionError struct {
	From Status
	To   Status
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal status transition %s -> %s", e.From, e.To)
}

type SizeCategory string

const (
	SizeSmall  SizeCategory = "small"
	SizeMedium SizeCategory = "medium"
	SizeLarge  SizeCategory = "large"
)

type Strategy string

const (
	StrategyDirectLLM Strategy = "direct_llm"
	StrategyHybrid    Strategy = "hybrid"
	StrategyFullRAG   Strategy = "full_rag"
)

// Strategies lists every processing strategy in quota-assignment order.
// FullRAG is last on purpose: it absorbs integer rounding remainders.
func Strategies() []Strategy {
	return []Strategy{StrategyDirectLLM, StrategyHybrid, StrategyFullRAG}
}
