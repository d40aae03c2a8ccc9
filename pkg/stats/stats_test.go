package stats

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"

	"mercator-hq/tollgate/pkg/traffic"
)

var t0 = time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

func sample(i int) Snapshot {
	return Snapshot{
		TakenAt: t0.Add(time.Duration(i) * time.Minute),
		Final:   i == 4,
		Stats: traffic.Stats{
			TotalProcessed:  int64(10 * i),
			TotalViolations: int64(3 * i),
			TooSlow:         int64(i),
			Speeding:        int64(2 * i),
			ViolationRate:   30,
			AvgSpeed:        84.5,
			MaxSpeed:        131.2,
			TotalFines:      decimal.RequireFromString("105.5").Mul(decimal.NewFromInt(int64(i))),
			Batches:         int64(i),
			StartedAt:       t0,
		},
	}
}

func stores(t *testing.T) map[string]Store {
	sq, err := NewSQLiteStore(SQLiteConfig{Path: filepath.Join(t.TempDir(), "nested", "stats.db")})
	if err != nil {
		t.Fatalf("NewSQLiteStore() failed: %v", err)
	}
	t.Cleanup(func() { sq.Close() })
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sq,
	}
}

func TestStore_SaveAndList(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i := 0; i < 5; i++ {
				if err := store.Save(ctx, sample(i)); err != nil {
					t.Fatalf("Save(%d) failed: %v", i, err)
				}
			}

			all, err := store.List(ctx, Range{})
			if err != nil {
				t.Fatalf("List() failed: %v", err)
			}
			if len(all) != 5 {
				t.Fatalf("List() returned %d snapshots, want 5", len(all))
			}

			// Newest first.
			got := all[0]
			want := sample(4)
			if !got.TakenAt.Equal(want.TakenAt) || !got.Final {
				t.Errorf("newest snapshot = %v final=%v", got.TakenAt, got.Final)
			}
			opts := cmp.Options{
				cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) }),
				cmp.Comparer(func(a, b time.Time) bool { return a.Equal(b) }),
			}
			gotStats, wantStats := got.Stats, want.Stats
			gotStats.UpdatedAt, wantStats.UpdatedAt = time.Time{}, time.Time{}
			if diff := cmp.Diff(wantStats, gotStats, opts); diff != "" {
				t.Errorf("stats mismatch (-want +got):\n%s", diff)
			}

			ranged, err := store.List(ctx, Range{From: t0.Add(time.Minute), To: t0.Add(3 * time.Minute)})
			if err != nil {
				t.Fatalf("List(range) failed: %v", err)
			}
			if len(ranged) != 3 || !ranged[2].TakenAt.Equal(t0.Add(time.Minute)) {
				t.Errorf("unexpected range result: %d snapshots", len(ranged))
			}

			limited, _ := store.List(ctx, Range{Limit: 2})
			if len(limited) != 2 {
				t.Errorf("List(limit=2) returned %d", len(limited))
			}
		})
	}
}

func TestSQLiteStore_ZeroStartTime(t *testing.T) {
	store, err := NewSQLiteStore(SQLiteConfig{Path: filepath.Join(t.TempDir(), "stats.db")})
	if err != nil {
		t.Fatalf("NewSQLiteStore() failed: %v", err)
	}
	defer store.Close()

	if err := store.Save(context.Background(), Snapshot{TakenAt: t0, Stats: traffic.Stats{TotalFines: decimal.Zero}}); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	got, err := store.List(context.Background(), Range{})
	if err != nil || len(got) != 1 {
		t.Fatalf("List() = %v, %v", got, err)
	}
	if !got[0].Stats.StartedAt.IsZero() {
		t.Errorf("StartedAt = %v, want zero", got[0].Stats.StartedAt)
	}
}

type fixedSource traffic.Stats

func (f fixedSource) Stats() traffic.Stats { return traffic.Stats(f) }

func TestSnapshotter_Final(t *testing.T) {
	store := NewMemoryStore()
	s := NewSnapshotter(store, "")
	s.now = func() time.Time { return t0 }

	if err := s.Start(context.Background(), fixedSource{}); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer s.Stop()

	if err := s.Final(context.Background(), traffic.Stats{TotalProcessed: 12}); err != nil {
		t.Fatalf("Final() failed: %v", err)
	}
	snaps, _ := store.List(context.Background(), Range{})
	if len(snaps) != 1 || !snaps[0].Final || snaps[0].Stats.TotalProcessed != 12 || !snaps[0].TakenAt.Equal(t0) {
		t.Errorf("unexpected snapshots: %+v", snaps)
	}
}

func TestSnapshotter_Periodic(t *testing.T) {
	store := NewMemoryStore()
	s := NewSnapshotter(store, "@every 1s")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx, fixedSource{TotalProcessed: 7}); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if err := s.Start(ctx, fixedSource{}); err == nil {
		t.Error("second Start() should fail")
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		snaps, _ := store.List(ctx, Range{})
		if len(snaps) > 0 {
			if snaps[0].Final || snaps[0].Stats.TotalProcessed != 7 {
				t.Errorf("unexpected periodic snapshot: %+v", snaps[0])
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("no periodic snapshot saved")
		}
		time.Sleep(50 * time.Millisecond)
	}
	s.Stop()
}
