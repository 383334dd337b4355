package service

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"taskpilot/internal/model"
	"taskpilot/internal/repository"
)

// IdentifierAllocator issues collision-free public ids per task family.
// Failure here aborts task creation; a task never exists without an id.
type IdentifierAllocator struct {
	sequences *repository.SequenceRepository
}

func NewIdentifierAllocator(sequences *repository.SequenceRepository) *IdentifierAllocator {
	return &IdentifierAllocator{sequences: sequences}
}

// WithTx returns a copy bound to the given transaction.
func (a *IdentifierAllocator) WithTx(tx *gorm.DB) *IdentifierAllocator {
	return &IdentifierAllocator{sequences: a.sequences.WithTx(tx)}
}

// Allocate returns the next public id for the family, e.g. P-0042 or G-0001.
func (a *IdentifierAllocator) Allocate(ctx context.Context, family model.Family) (string, error) {
	value, err := a.sequences.Next(ctx, family)
	if err != nil {
		return "", fmt.Errorf("allocate %s id: %w", family, err)
	}
	return FormatPublicID(family, value), nil
}

// FormatPublicID renders a sequence value in display form. The width is
// fixed at four digits and widens on its own past 9999.
func FormatPublicID(family model.Family, value uint64) string {
	return fmt.Sprintf("%s-%04d", family, value)
}
