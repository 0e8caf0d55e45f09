package models

import "time"

type Document struct {
	ID           string
	CaseID       string
	Name         string
	Content      string
	Status       Status
	SizeCategory SizeCategory
	Strategy     Strategy
	Error        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Transition applies a status change, rejecting moves the lifecycle does
// not allow. Failed transitions leave the document untouched.
func (d *Document) Transition(next Status) error {
	if !d.Status.CanTransition(next) {
		return &IllegalTransitionError{From: d.Status, To: next}
	}
	d.Status = next
	d.UpdatedAt = time.Now()
	return nil
}

type Chunk struct {
	ID         string
	DocumentID string
	Index      int
	Content    string
	Metadata   ChunkMetadata
	CreatedAt  time.Time
}

// ChunkMetadata travels with the chunk into the vector store so search
// results can be labeled without a second lookup.
type ChunkMetadata struct {
	DocumentName string       `json:"document_name"`
	SizeCategory SizeCategory `json:"size_category"`
	Strategy     Strategy     `json:"strategy"`
	CaseID       string       `json:"case_id"`
}
