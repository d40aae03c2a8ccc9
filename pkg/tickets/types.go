package tickets

import (
	"context"
	"io"
	"time"

	"mercator-hq/tollgate/pkg/traffic"
)

// Query defines filter parameters for querying tickets.
// Zero-valued fields do not filter.
type Query struct {
	// Time range on IssuedAt
	StartTime *time.Time `json:"start_time,omitempty"` // Inclusive
	EndTime   *time.Time `json:"end_time,omitempty"`   // Inclusive

	// Filters
	LicensePlate string `json:"license_plate,omitempty"`
	VehicleType  string `json:"vehicle_type,omitempty"`
	Kind         string `json:"kind,omitempty"` // "TOO_SLOW" or "SPEEDING"
	Band         string `json:"band,omitempty"`

	// Fine thresholds
	MinFine *float64 `json:"min_fine,omitempty"`
	MaxFine *float64 `json:"max_fine,omitempty"`

	// Pagination
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`

	// Sorting
	SortBy    string `json:"sort_by,omitempty"`    // "issued_at", "total_fine", "speed"
	SortOrder string `json:"sort_order,omitempty"` // "asc", "desc"
}

// Storage defines the interface for ticket storage backends.
// Implementations must be safe for concurrent use.
type Storage interface {
	// Store persists a ticket.
	Store(ctx context.Context, ticket *traffic.Ticket) error

	// Query retrieves tickets matching the query filters.
	// Returns an empty slice if no tickets match.
	Query(ctx context.Context, query *Query) ([]*traffic.Ticket, error)

	// Count returns the number of tickets matching the query filters.
	// Pagination fields are ignored.
	Count(ctx context.Context, query *Query) (int64, error)

	// Delete removes tickets matching the query filters and returns how many
	// were removed. Used by retention only.
	Delete(ctx context.Context, query *Query) (int64, error)

	// Close flushes and releases any resources held by the backend.
	Close() error
}

// Exporter writes tickets to a writer in some format.
type Exporter interface {
	Export(ctx context.Context, tickets []*traffic.Ticket, w io.Writer) error
}
