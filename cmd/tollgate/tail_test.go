package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mercator-hq/tollgate/pkg/traffic"
)

func ticketLine(t *testing.T, tk *traffic.Ticket) []byte {
	t.Helper()
	b, err := json.Marshal(tk)
	if err != nil {
		t.Fatalf("marshal ticket: %v", err)
	}
	return append(b, '\n')
}

func appendFile(t *testing.T, path string, data []byte) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestFollower_ReadNewSkipsPartialLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tickets.jsonl")
	first := ticketLine(t, ticket("B 1 AA", traffic.KindSpeeding, "SPEED_HIGH_LEVEL_1", 105, "30", true, true))
	second := ticketLine(t, ticket("D 2 BB", traffic.KindTooSlow, "SPEED_LOW_MILD", 55, "20", true, true))

	var got []string
	f := newFollower(path, func(tk *traffic.Ticket) error {
		got = append(got, tk.LicensePlate)
		return nil
	})
	ctx := context.Background()

	// Missing file is not an error.
	if err := f.readNew(ctx); err != nil {
		t.Fatalf("readNew on missing file: %v", err)
	}

	appendFile(t, path, first)
	appendFile(t, path, second[:10])
	if err := f.readNew(ctx); err != nil {
		t.Fatalf("readNew: %v", err)
	}
	if len(got) != 1 || got[0] != "B 1 AA" {
		t.Fatalf("after partial write got %v, want [B 1 AA]", got)
	}
	if f.offset != int64(len(first)) {
		t.Errorf("offset = %d, want %d", f.offset, len(first))
	}

	appendFile(t, path, second[10:])
	if err := f.readNew(ctx); err != nil {
		t.Fatalf("readNew: %v", err)
	}
	if len(got) != 2 || got[1] != "D 2 BB" {
		t.Fatalf("after completing line got %v, want [B 1 AA D 2 BB]", got)
	}
}

func TestFollower_ResetsOnTruncate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tickets.jsonl")
	appendFile(t, path, ticketLine(t, ticket("B 1 AA", traffic.KindSpeeding, "SPEED_HIGH_LEVEL_1", 105, "30", true, true)))
	appendFile(t, path, ticketLine(t, ticket("D 2 BB", traffic.KindSpeeding, "SPEED_HIGH_LEVEL_1", 106, "30", true, true)))

	var got []string
	f := newFollower(path, func(tk *traffic.Ticket) error {
		got = append(got, tk.LicensePlate)
		return nil
	})
	if err := f.readNew(context.Background()); err != nil {
		t.Fatalf("readNew: %v", err)
	}

	// Rewrite with a shorter file, as the retention pruner does.
	line := ticketLine(t, ticket("F 3 CC", traffic.KindTooSlow, "SPEED_LOW_SEVERE", 40, "35", true, true))
	if err := os.WriteFile(path, line, 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if err := f.readNew(context.Background()); err != nil {
		t.Fatalf("readNew: %v", err)
	}
	if len(got) != 3 || got[2] != "F 3 CC" {
		t.Fatalf("got %v, want rewritten ticket F 3 CC last", got)
	}
}

func TestFollower_RunFollowsAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tickets.jsonl")
	appendFile(t, path, ticketLine(t, ticket("OLD 1", traffic.KindSpeeding, "SPEED_HIGH_LEVEL_1", 105, "30", true, true)))

	plates := make(chan string, 64)
	f := newFollower(path, func(tk *traffic.Ticket) error {
		select {
		case plates <- tk.LicensePlate:
		default:
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.run(ctx, false) }()

	// Wait for the initial offset to be taken past the existing ticket.
	deadline := time.Now().Add(2 * time.Second)
	for {
		appendFile(t, path, ticketLine(t, ticket("NEW 2", traffic.KindSpeeding, "SPEED_HIGH_LEVEL_2", 115, "50", true, true)))
		select {
		case p := <-plates:
			if p == "OLD 1" {
				t.Fatal("existing ticket emitted without --from-start")
			}
			cancel()
			if err := <-done; err != nil {
				t.Fatalf("run: %v", err)
			}
			return
		case <-time.After(100 * time.Millisecond):
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatal("appended ticket was not emitted")
		}
	}
}
