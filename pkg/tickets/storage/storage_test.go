package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"mercator-hq/tollgate/pkg/config"
	"mercator-hq/tollgate/pkg/tickets"
	"mercator-hq/tollgate/pkg/traffic"
)

var baseTime = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func makeTicket(i int, kind traffic.ViolationKind, fine int64) *traffic.Ticket {
	band := "LEVEL_1"
	speed := 101.0 + float64(i)
	if kind == traffic.KindTooSlow {
		band = "SEVERE"
		speed = 30 + float64(i)
	}
	return &traffic.Ticket{
		ID:                fmt.Sprintf("ticket-%02d", i),
		VehicleID:         fmt.Sprintf("veh-%02d", i),
		LicensePlate:      fmt.Sprintf("B %04d XY", i),
		VehicleType:       traffic.VehicleCar,
		Kind:              kind,
		Band:              band,
		Speed:             speed,
		SpeedLimitUsed:    100,
		BaseFine:          decimal.NewFromInt(fine),
		PenaltyMultiplier: decimal.NewFromInt(1),
		TotalFine:         decimal.NewFromInt(fine),
		STNKActive:        true,
		SIMActive:         true,
		Location:          traffic.DefaultLocation,
		IssuedAt:          baseTime.Add(time.Duration(i) * time.Minute),
		Status:            traffic.TicketPending,
	}
}

// backends returns a constructor for every storage implementation.
func backends(t *testing.T) map[string]func() tickets.Storage {
	t.Helper()
	return map[string]func() tickets.Storage{
		"memory": func() tickets.Storage { return NewMemoryStorage() },
		"jsonl": func() tickets.Storage {
			s, err := NewJSONLStorage(JSONLConfig{Path: filepath.Join(t.TempDir(), "tickets.jsonl")})
			if err != nil {
				t.Fatalf("NewJSONLStorage() failed: %v", err)
			}
			return s
		},
		"sqlite": func() tickets.Storage {
			s, err := NewSQLiteStorage(&SQLiteConfig{
				Path:         filepath.Join(t.TempDir(), "tickets.db"),
				MaxOpenConns: 5,
				MaxIdleConns: 2,
				WALMode:      true,
				BusyTimeout:  5 * time.Second,
			})
			if err != nil {
				t.Fatalf("NewSQLiteStorage() failed: %v", err)
			}
			return s
		},
	}
}

func seed(t *testing.T, s tickets.Storage) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < 6; i++ {
		kind := traffic.KindSpeeding
		fine := int64(30 + i*10)
		if i%3 == 0 {
			kind = traffic.KindTooSlow
			fine = 20
		}
		if err := s.Store(ctx, makeTicket(i, kind, fine)); err != nil {
			t.Fatalf("Store(%d) failed: %v", i, err)
		}
	}
}

func TestStorage_StoreAndQuery(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open()
			defer s.Close()
			seed(t, s)
			ctx := context.Background()

			all, err := s.Query(ctx, &tickets.Query{})
			if err != nil {
				t.Fatalf("Query() failed: %v", err)
			}
			if len(all) != 6 {
				t.Fatalf("expected 6 tickets, got %d", len(all))
			}
			// Default order is newest first.
			if all[0].ID != "ticket-05" || all[5].ID != "ticket-00" {
				t.Errorf("unexpected order: first=%s last=%s", all[0].ID, all[5].ID)
			}

			got := all[5]
			want := makeTicket(0, traffic.KindTooSlow, 20)
			if !got.TotalFine.Equal(want.TotalFine) || !got.PenaltyMultiplier.Equal(want.PenaltyMultiplier) {
				t.Errorf("fine round trip: got %s x %s", got.TotalFine, got.PenaltyMultiplier)
			}
			if !got.IssuedAt.Equal(want.IssuedAt) {
				t.Errorf("IssuedAt = %v, want %v", got.IssuedAt, want.IssuedAt)
			}
			if got.Kind != want.Kind || got.Band != want.Band || got.Status != traffic.TicketPending {
				t.Errorf("unexpected ticket fields: %+v", got)
			}
		})
	}
}

func TestStorage_QueryFilters(t *testing.T) {
	minFine := 40.0
	start := baseTime.Add(2 * time.Minute)
	end := baseTime.Add(4 * time.Minute)

	tests := []struct {
		name  string
		query tickets.Query
		want  []string
	}{
		{"by kind", tickets.Query{Kind: "TOO_SLOW", SortOrder: "asc"}, []string{"ticket-00", "ticket-03"}},
		{"by plate case insensitive", tickets.Query{LicensePlate: "b 0004 xy"}, []string{"ticket-04"}},
		{"by min fine", tickets.Query{MinFine: &minFine, SortBy: "total_fine", SortOrder: "asc"}, []string{"ticket-01", "ticket-02", "ticket-04", "ticket-05"}},
		{"by time range", tickets.Query{StartTime: &start, EndTime: &end, SortOrder: "asc"}, []string{"ticket-02", "ticket-03", "ticket-04"}},
		{"by band", tickets.Query{Band: "SEVERE", SortOrder: "asc"}, []string{"ticket-00", "ticket-03"}},
		{"paginated", tickets.Query{Limit: 2, Offset: 1, SortOrder: "asc"}, []string{"ticket-01", "ticket-02"}},
		{"offset past end", tickets.Query{Offset: 10}, []string{}},
	}

	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open()
			defer s.Close()
			seed(t, s)

			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					q := tt.query
					got, err := s.Query(context.Background(), &q)
					if err != nil {
						t.Fatalf("Query() failed: %v", err)
					}
					if len(got) != len(tt.want) {
						t.Fatalf("expected %d tickets, got %d", len(tt.want), len(got))
					}
					for i, id := range tt.want {
						if got[i].ID != id {
							t.Errorf("result[%d] = %s, want %s", i, got[i].ID, id)
						}
					}
				})
			}
		})
	}
}

func TestStorage_CountAndDelete(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open()
			defer s.Close()
			seed(t, s)
			ctx := context.Background()

			n, err := s.Count(ctx, &tickets.Query{Kind: "SPEEDING"})
			if err != nil {
				t.Fatalf("Count() failed: %v", err)
			}
			if n != 4 {
				t.Errorf("Count(SPEEDING) = %d, want 4", n)
			}

			cutoff := baseTime.Add(2 * time.Minute)
			deleted, err := s.Delete(ctx, &tickets.Query{EndTime: &cutoff})
			if err != nil {
				t.Fatalf("Delete() failed: %v", err)
			}
			if deleted != 3 {
				t.Errorf("Delete() = %d, want 3", deleted)
			}

			n, err = s.Count(ctx, &tickets.Query{})
			if err != nil {
				t.Fatalf("Count() failed: %v", err)
			}
			if n != 3 {
				t.Errorf("Count() after delete = %d, want 3", n)
			}

			// The backend keeps accepting writes after a delete.
			if err := s.Store(ctx, makeTicket(9, traffic.KindSpeeding, 50)); err != nil {
				t.Fatalf("Store() after delete failed: %v", err)
			}
			n, _ = s.Count(ctx, &tickets.Query{})
			if n != 4 {
				t.Errorf("Count() after store = %d, want 4", n)
			}
		})
	}
}

func TestStorage_DuplicateID(t *testing.T) {
	for name, open := range backends(t) {
		if name == "jsonl" {
			continue // append-only, no uniqueness index
		}
		t.Run(name, func(t *testing.T) {
			s := open()
			defer s.Close()
			ctx := context.Background()

			tk := makeTicket(1, traffic.KindSpeeding, 30)
			if err := s.Store(ctx, tk); err != nil {
				t.Fatalf("Store() failed: %v", err)
			}
			err := s.Store(ctx, tk)
			var storageErr *tickets.StorageError
			if !errors.As(err, &storageErr) {
				t.Fatalf("expected StorageError, got %v", err)
			}
		})
	}
}

func TestStorage_InvalidQuery(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open()
			defer s.Close()

			_, err := s.Query(context.Background(), &tickets.Query{SortBy: "plate"})
			var queryErr *tickets.QueryError
			if !errors.As(err, &queryErr) {
				t.Errorf("expected QueryError, got %v", err)
			}
		})
	}
}

func TestJSONLStorage_ReopenKeepsTickets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tickets.jsonl")
	ctx := context.Background()

	s, err := NewJSONLStorage(JSONLConfig{Path: path, SyncEveryWrite: true})
	if err != nil {
		t.Fatalf("NewJSONLStorage() failed: %v", err)
	}
	seed(t, s)
	if err := s.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if err := s.Store(ctx, makeTicket(7, traffic.KindSpeeding, 30)); err == nil {
		t.Error("Store() after Close() should fail")
	}

	s, err = NewJSONLStorage(JSONLConfig{Path: path})
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()

	n, err := s.Count(ctx, &tickets.Query{})
	if err != nil {
		t.Fatalf("Count() failed: %v", err)
	}
	if n != 6 {
		t.Errorf("Count() after reopen = %d, want 6", n)
	}
}

func TestDecodeLines_PartialTrailingLine(t *testing.T) {
	input := `{"ticket_id":"a","total_fine":"30"}` + "\n\n" + `{"ticket_id":"b","total_fi`

	var ids []string
	err := DecodeLines(context.Background(), stringsReader(input), func(tk *traffic.Ticket) error {
		ids = append(ids, tk.ID)
		return nil
	})
	if err != nil {
		t.Fatalf("DecodeLines() failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != "a" {
		t.Errorf("decoded %v, want [a]", ids)
	}
}

func TestDecodeLines_Malformed(t *testing.T) {
	err := DecodeLines(context.Background(), stringsReader("not json\n"), func(*traffic.Ticket) error { return nil })
	if err == nil {
		t.Error("expected error for malformed line")
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		backend string
		wantErr bool
	}{
		{"jsonl", false},
		{"sqlite", false},
		{"memory", false},
		{"postgres", true},
	}

	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			cfg := config.DefaultConfig().Tickets
			cfg.Backend = tt.backend
			cfg.JSONL.Path = filepath.Join(dir, "t.jsonl")
			cfg.SQLite.Path = filepath.Join(dir, "t.db")

			s, err := Open(&cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Open() error = %v, wantErr %v", err, tt.wantErr)
			}
			if s != nil {
				s.Close()
			}
		})
	}
}

func stringsReader(s string) *strings.Reader { return strings.NewReader(s) }
