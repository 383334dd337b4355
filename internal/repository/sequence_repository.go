package repository

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"taskpilot/internal/model"
)

// SequenceRepository owns the per-family public-id counters.
type SequenceRepository struct {
	db *gorm.DB
}

func NewSequenceRepository(db *gorm.DB) *SequenceRepository {
	return &SequenceRepository{db: db}
}

// WithTx returns a copy bound to the given transaction.
func (r *SequenceRepository) WithTx(tx *gorm.DB) *SequenceRepository {
	return &SequenceRepository{db: tx}
}

// Next advances the family counter by one and returns the new value. The
// increment is a single upsert statement, so two concurrent callers can never
// observe the same value.
func (r *SequenceRepository) Next(ctx context.Context, family model.Family) (uint64, error) {
	var seq model.Sequence
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "family"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"value": gorm.Expr("value + 1")}),
		}).Create(&model.Sequence{Family: string(family), Value: 1}).Error; err != nil {
			return errors.Wrapf(err, "increment sequence %s", family)
		}
		if err := tx.Where("family = ?", string(family)).First(&seq).Error; err != nil {
			return errors.Wrapf(err, "read sequence %s", family)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return seq.Value, nil
}
