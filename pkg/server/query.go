package server

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"mercator-hq/tollgate/pkg/stats"
	"mercator-hq/tollgate/pkg/tickets"
)

// parseTicketQuery maps URL parameters onto a ticket query.
//
//	plate, type, kind, band   exact filters (plate is case-insensitive)
//	from, to                  RFC 3339 bounds on issued_at
//	min_fine, max_fine        fine thresholds
//	limit, offset             pagination
//	sort, order               sort field and direction
func parseTicketQuery(v url.Values) (*tickets.Query, error) {
	q := &tickets.Query{
		LicensePlate: v.Get("plate"),
		VehicleType:  v.Get("type"),
		Kind:         v.Get("kind"),
		Band:         v.Get("band"),
		SortBy:       v.Get("sort"),
		SortOrder:    v.Get("order"),
	}

	var err error
	if q.StartTime, err = parseTime(v, "from"); err != nil {
		return nil, err
	}
	if q.EndTime, err = parseTime(v, "to"); err != nil {
		return nil, err
	}
	if q.MinFine, err = parseFloat(v, "min_fine"); err != nil {
		return nil, err
	}
	if q.MaxFine, err = parseFloat(v, "max_fine"); err != nil {
		return nil, err
	}
	if q.Limit, err = parseInt(v, "limit"); err != nil {
		return nil, err
	}
	if q.Offset, err = parseInt(v, "offset"); err != nil {
		return nil, err
	}

	q.ApplyDefaults()
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return q, nil
}

// parseRange maps URL parameters onto a snapshot range.
func parseRange(v url.Values) (stats.Range, error) {
	var r stats.Range
	from, err := parseTime(v, "from")
	if err != nil {
		return r, err
	}
	to, err := parseTime(v, "to")
	if err != nil {
		return r, err
	}
	if from != nil {
		r.From = *from
	}
	if to != nil {
		r.To = *to
	}
	if r.Limit, err = parseInt(v, "limit"); err != nil {
		return r, err
	}
	if r.Limit == 0 {
		r.Limit = tickets.DefaultLimit
	}
	return r, nil
}

func parseTime(v url.Values, key string) (*time.Time, error) {
	s := v.Get(key)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: expected RFC 3339 time, got %q", key, s)
	}
	return &t, nil
}

func parseFloat(v url.Values, key string) (*float64, error) {
	s := v.Get(key)
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %q is not a number", key, s)
	}
	return &f, nil
}

func parseInt(v url.Values, key string) (int, error) {
	s := v.Get(key)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s: %q is not a non-negative integer", key, s)
	}
	return n, nil
}
