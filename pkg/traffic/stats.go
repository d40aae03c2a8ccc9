package traffic

import (
	"time"

	"github.com/shopspring/decimal"
)

// Stats is a point-in-time view of the pipeline's running statistics.
type Stats struct {
	TotalProcessed  int64           `json:"total_processed"`
	TotalViolations int64           `json:"total_violations"`
	TooSlow         int64           `json:"too_slow"`
	Speeding        int64           `json:"speeding"`
	ViolationRate   float64         `json:"violation_rate"` // percent
	AvgSpeed        float64         `json:"avg_speed"`
	MaxSpeed        float64         `json:"max_speed"`
	TotalFines      decimal.Decimal `json:"total_fines"`

	// Vehicles that never produced a result.
	Rejected   int64 `json:"rejected"`   // failed validation at submit
	Dropped    int64 `json:"dropped"`    // evaluation failed
	Terminated int64 `json:"terminated"` // cancelled in flight at shutdown
	Abandoned  int64 `json:"abandoned"`  // still queued at shutdown

	Batches   int64     `json:"batches"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
