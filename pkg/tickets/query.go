package tickets

import (
	"fmt"
	"sort"
	"strings"

	"mercator-hq/tollgate/pkg/traffic"
)

const (
	// DefaultLimit is the default number of tickets returned by a query.
	DefaultLimit = 100

	// MaxLimit is the maximum number of tickets a single query may return.
	MaxLimit = 10000
)

// ValidSortFields contains the fields that can be used for sorting.
var ValidSortFields = map[string]bool{
	"issued_at":  true,
	"total_fine": true,
	"speed":      true,
}

// Validate checks query parameters.
func (q *Query) Validate() error {
	if q.Limit < 0 || q.Limit > MaxLimit {
		return NewQueryError(q, fmt.Errorf("limit must be between 0 and %d, got %d", MaxLimit, q.Limit))
	}
	if q.Offset < 0 {
		return NewQueryError(q, fmt.Errorf("offset must be >= 0, got %d", q.Offset))
	}
	if q.SortBy != "" && !ValidSortFields[q.SortBy] {
		return NewQueryError(q, fmt.Errorf("invalid sort field: %s", q.SortBy))
	}
	if q.SortOrder != "" && q.SortOrder != "asc" && q.SortOrder != "desc" {
		return NewQueryError(q, fmt.Errorf("invalid sort order: %s (must be 'asc' or 'desc')", q.SortOrder))
	}
	if q.StartTime != nil && q.EndTime != nil && q.StartTime.After(*q.EndTime) {
		return NewQueryError(q, fmt.Errorf("start_time must be before end_time"))
	}
	if q.MinFine != nil && q.MaxFine != nil && *q.MinFine > *q.MaxFine {
		return NewQueryError(q, fmt.Errorf("min_fine must be <= max_fine"))
	}
	if q.Kind != "" && !traffic.ViolationKind(q.Kind).IsViolation() {
		return NewQueryError(q, fmt.Errorf("invalid kind: %s (must be TOO_SLOW or SPEEDING)", q.Kind))
	}
	return nil
}

// ApplyDefaults applies default values to a query.
func (q *Query) ApplyDefaults() {
	if q.Limit == 0 {
		q.Limit = DefaultLimit
	}
	if q.SortBy == "" {
		q.SortBy = "issued_at"
	}
	if q.SortOrder == "" {
		q.SortOrder = "desc"
	}
}

// Matches reports whether t satisfies the query filters.
func (q *Query) Matches(t *traffic.Ticket) bool {
	if q.StartTime != nil && t.IssuedAt.Before(*q.StartTime) {
		return false
	}
	if q.EndTime != nil && t.IssuedAt.After(*q.EndTime) {
		return false
	}
	if q.LicensePlate != "" && !strings.EqualFold(q.LicensePlate, t.LicensePlate) {
		return false
	}
	if q.VehicleType != "" && q.VehicleType != string(t.VehicleType) {
		return false
	}
	if q.Kind != "" && q.Kind != string(t.Kind) {
		return false
	}
	if q.Band != "" && q.Band != t.Band {
		return false
	}
	fine := t.TotalFine.InexactFloat64()
	if q.MinFine != nil && fine < *q.MinFine {
		return false
	}
	if q.MaxFine != nil && fine > *q.MaxFine {
		return false
	}
	return true
}

// Apply filters, sorts and paginates an in-memory ticket list.
// Used by the backends that keep no index.
func (q *Query) Apply(all []*traffic.Ticket) []*traffic.Ticket {
	matched := make([]*traffic.Ticket, 0)
	for _, t := range all {
		if q.Matches(t) {
			matched = append(matched, t)
		}
	}

	desc := q.SortOrder != "asc"
	less := func(a, b *traffic.Ticket) bool {
		switch q.SortBy {
		case "total_fine":
			return a.TotalFine.LessThan(b.TotalFine)
		case "speed":
			return a.Speed < b.Speed
		default:
			return a.IssuedAt.Before(b.IssuedAt)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if desc {
			return less(matched[j], matched[i])
		}
		return less(matched[i], matched[j])
	})

	if q.Offset > 0 {
		if q.Offset >= len(matched) {
			return []*traffic.Ticket{}
		}
		matched = matched[q.Offset:]
	}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched
}
