package repository

import (
	"context"
	"errors"
	"fmt"

	"media_pipeline/internal/converter/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerRepo remembers which source handles already produced a published outcome
type LedgerRepo interface {
	AutoMigrate() error
	// Find returns nil, nil when nothing is recorded for sourceHandle
	Find(ctx context.Context, sourceHandle string) (*domain.LedgerEntry, error)
	// Save keeps the first entry written for a source handle, inserted is false when
	// another entry was already recorded
	Save(ctx context.Context, entry *domain.LedgerEntry) (inserted bool, err error)
}

type ledgerRepo struct {
	db *gorm.DB
}

// NewLedgerRepo create LedgerRepo
func NewLedgerRepo(db *gorm.DB) LedgerRepo {
	return &ledgerRepo{db: db}
}

// AutoMigrate create or update the conversion_ledger table
func (r *ledgerRepo) AutoMigrate() error {
	return r.db.AutoMigrate(&domain.LedgerEntry{})
}

func (r *ledgerRepo) Find(ctx context.Context, sourceHandle string) (*domain.LedgerEntry, error) {
	var entry domain.LedgerEntry
	err := r.db.WithContext(ctx).Where("source_handle = ?", sourceHandle).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find ledger entry %s: %w", sourceHandle, err)
	}
	return &entry, nil
}

// Save insert entry, a concurrent worker that recorded the same source first wins
func (r *ledgerRepo) Save(ctx context.Context, entry *domain.LedgerEntry) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "source_handle"}}, DoNothing: true}).
		Create(entry)
	if res.Error != nil {
		return false, fmt.Errorf("save ledger entry %s: %w", entry.SourceHandle, res.Error)
	}
	return res.RowsAffected == 1, nil
}
