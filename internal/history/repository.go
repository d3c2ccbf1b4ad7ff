package history

import (
	"time"

	"github.com/monstercameron/zerver-probe/internal/core"
)

// DefaultRecentLimit bounds Recent queries that do not name a limit.
const DefaultRecentLimit = 20

// Repository stores and retrieves probe reports.
type Repository interface {
	// Save persists one completed report.
	Save(r core.Report) error
	// Recent returns up to limit records, newest first. A non-positive
	// limit means DefaultRecentLimit.
	Recent(limit int) ([]Record, error)
	// PruneBefore deletes records completed before cutoff and returns how
	// many went away.
	PruneBefore(cutoff time.Time) (int64, error)
}
