package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"mercator-hq/tollgate/pkg/tickets/storage"
	"mercator-hq/tollgate/pkg/traffic"
)

func tailTickets(cmd *cobra.Command, args []string) error {
	q, err := buildQuery(cmd, ticketFlags.filter)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	backend := cfg.Tickets.Backend
	if ticketFlags.filter.backend != "" {
		backend = ticketFlags.filter.backend
	}
	if backend != "jsonl" {
		return fmt.Errorf("tail requires the jsonl backend, configured backend is %s", backend)
	}

	w := cmd.OutOrStdout()
	emit := func(t *traffic.Ticket) error {
		if !q.Matches(t) {
			return nil
		}
		return printTicketLine(w, ticketFlags.tailOutput, t)
	}

	f := newFollower(cfg.Tickets.JSONL.Path, emit)
	return f.run(cmd.Context(), ticketFlags.fromStart)
}

func printTicketLine(w io.Writer, format string, t *traffic.Ticket) error {
	if format == "json" {
		return json.NewEncoder(w).Encode(t)
	}
	_, err := fmt.Fprintf(w, "%s  %-12s %-10s %-8s %5s km/h (limit %s)  %s  fine %s\n",
		t.IssuedAt.Local().Format(tableTime),
		t.LicensePlate,
		t.VehicleType,
		t.Kind,
		formatSpeed(t.Speed),
		formatSpeed(t.SpeedLimitUsed),
		t.Band,
		t.TotalFine.StringFixed(2),
	)
	return err
}

// follower reads complete lines appended to a JSON Lines ticket file.
// It watches the parent directory so it survives the file being created
// late or rewritten by the retention pruner.
type follower struct {
	path   string
	offset int64
	emit   func(*traffic.Ticket) error
}

func newFollower(path string, emit func(*traffic.Ticket) error) *follower {
	return &follower{path: path, emit: emit}
}

func (f *follower) run(ctx context.Context, fromStart bool) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(f.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	if !fromStart {
		if info, err := os.Stat(f.path); err == nil {
			f.offset = info.Size()
		}
	}
	if err := f.readNew(ctx); err != nil {
		return err
	}

	target := filepath.Clean(f.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				f.offset = 0
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if err := f.readNew(ctx); err != nil {
					return err
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch error: %w", err)
		}
	}
}

// readNew decodes every complete line past the current offset. A partial
// trailing line stays unread until the writer finishes it.
func (f *follower) readNew(ctx context.Context) error {
	file, err := os.Open(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}
	if info.Size() < f.offset {
		// truncated or rewritten
		f.offset = 0
	}
	if info.Size() == f.offset {
		return nil
	}

	data := make([]byte, info.Size()-f.offset)
	n, err := file.ReadAt(data, f.offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	data = data[:n]

	end := bytes.LastIndexByte(data, '\n')
	if end < 0 {
		return nil
	}
	complete := data[:end+1]
	f.offset += int64(len(complete))

	return storage.DecodeLines(ctx, bytes.NewReader(complete), f.emit)
}
