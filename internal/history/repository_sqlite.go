package history

import (
	"time"

	"gorm.io/gorm"

	"github.com/monstercameron/zerver-probe/internal/core"
)

type sqliteRepository struct {
	db *gorm.DB
}

// NewSQLiteRepository wraps an open database in the Repository interface.
func NewSQLiteRepository(db *gorm.DB) Repository {
	return &sqliteRepository{db: db}
}

func (r *sqliteRepository) Save(report core.Report) error {
	rec := NewRecord(report)
	return r.db.Create(&rec).Error
}

func (r *sqliteRepository) Recent(limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	var recs []Record
	if err := r.db.Order("completed_at DESC").Limit(limit).Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

func (r *sqliteRepository) PruneBefore(cutoff time.Time) (int64, error) {
	res := r.db.Where("completed_at < ?", cutoff).Delete(&Record{})
	return res.RowsAffected, res.Error
}
