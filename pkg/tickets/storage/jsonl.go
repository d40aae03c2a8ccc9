package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"mercator-hq/tollgate/pkg/tickets"
	"mercator-hq/tollgate/pkg/traffic"
)

// JSONLConfig contains configuration for the JSON Lines backend.
type JSONLConfig struct {
	// Path is the ticket file path. Parent directories are created.
	Path string

	// SyncEveryWrite fsyncs after each ticket. When false the file is synced on Close.
	SyncEveryWrite bool
}

// JSONLStorage stores tickets as newline-delimited JSON in a single file.
//
// Writes only ever append. Query and Count scan the file. Delete, used by
// retention, rewrites the file through a temporary file and an atomic rename.
type JSONLStorage struct {
	mu     sync.Mutex
	config JSONLConfig
	file   *os.File
	w      *bufio.Writer
	logger *slog.Logger
}

// NewJSONLStorage opens (or creates) the ticket file for appending.
func NewJSONLStorage(cfg JSONLConfig) (*JSONLStorage, error) {
	if cfg.Path == "" {
		return nil, tickets.NewStorageError("jsonl", "open", fmt.Errorf("path is required"))
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
		return nil, tickets.NewStorageError("jsonl", "open", err)
	}

	f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, tickets.NewStorageError("jsonl", "open", err)
	}

	s := &JSONLStorage{
		config: cfg,
		file:   f,
		w:      bufio.NewWriter(f),
		logger: slog.Default().With("component", "tickets.storage.jsonl"),
	}
	s.logger.Info("JSONL ticket storage opened", "path", cfg.Path)
	return s, nil
}

// Store appends the ticket as one JSON line.
func (s *JSONLStorage) Store(ctx context.Context, ticket *traffic.Ticket) error {
	line, err := json.Marshal(ticket)
	if err != nil {
		return tickets.NewStorageError("jsonl", "store", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return tickets.NewStorageError("jsonl", "store", os.ErrClosed)
	}
	if _, err := s.w.Write(line); err != nil {
		return tickets.NewStorageError("jsonl", "store", err)
	}
	// Flush per ticket so tailers see complete lines.
	if err := s.w.Flush(); err != nil {
		return tickets.NewStorageError("jsonl", "store", err)
	}
	if s.config.SyncEveryWrite {
		if err := s.file.Sync(); err != nil {
			return tickets.NewStorageError("jsonl", "sync", err)
		}
	}
	return nil
}

// Query scans the file and returns the tickets matching the query.
func (s *JSONLStorage) Query(ctx context.Context, query *tickets.Query) ([]*traffic.Ticket, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	all, err := s.readAll(ctx)
	if err != nil {
		return nil, err
	}
	return query.Apply(all), nil
}

// Count returns the number of tickets matching the query filters.
func (s *JSONLStorage) Count(ctx context.Context, query *tickets.Query) (int64, error) {
	all, err := s.readAll(ctx)
	if err != nil {
		return 0, err
	}
	var n int64
	for _, t := range all {
		if query.Matches(t) {
			n++
		}
	}
	return n, nil
}

// Delete rewrites the file without the matching tickets.
func (s *JSONLStorage) Delete(ctx context.Context, query *tickets.Query) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return 0, tickets.NewStorageError("jsonl", "delete", os.ErrClosed)
	}
	if err := s.w.Flush(); err != nil {
		return 0, tickets.NewStorageError("jsonl", "delete", err)
	}

	all, err := readFile(ctx, s.config.Path)
	if err != nil {
		return 0, tickets.NewStorageError("jsonl", "delete", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.config.Path), ".tickets-*.jsonl")
	if err != nil {
		return 0, tickets.NewStorageError("jsonl", "delete", err)
	}
	defer os.Remove(tmp.Name())

	var deleted int64
	enc := json.NewEncoder(tmp)
	for _, t := range all {
		if query.Matches(t) {
			deleted++
			continue
		}
		if err := enc.Encode(t); err != nil {
			tmp.Close()
			return 0, tickets.NewStorageError("jsonl", "delete", err)
		}
	}
	if deleted == 0 {
		tmp.Close()
		return 0, nil
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return 0, tickets.NewStorageError("jsonl", "delete", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, tickets.NewStorageError("jsonl", "delete", err)
	}

	// Swap files and reopen the append handle on the new file.
	s.file.Close()
	if err := os.Rename(tmp.Name(), s.config.Path); err != nil {
		s.reopen()
		return 0, tickets.NewStorageError("jsonl", "delete", err)
	}
	if err := s.reopen(); err != nil {
		return 0, tickets.NewStorageError("jsonl", "delete", err)
	}

	s.logger.Info("tickets deleted", "count", deleted)
	return deleted, nil
}

func (s *JSONLStorage) reopen() error {
	f, err := os.OpenFile(s.config.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		s.file = nil
		return err
	}
	s.file = f
	s.w = bufio.NewWriter(f)
	return nil
}

// Close flushes, syncs and closes the file.
func (s *JSONLStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	var firstErr error
	if err := s.w.Flush(); err != nil {
		firstErr = err
	}
	if err := s.file.Sync(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.file.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	s.file = nil

	if firstErr != nil {
		return tickets.NewStorageError("jsonl", "close", firstErr)
	}
	s.logger.Info("JSONL ticket storage closed")
	return nil
}

func (s *JSONLStorage) readAll(ctx context.Context) ([]*traffic.Ticket, error) {
	s.mu.Lock()
	if s.file != nil {
		if err := s.w.Flush(); err != nil {
			s.mu.Unlock()
			return nil, tickets.NewStorageError("jsonl", "query", err)
		}
	}
	s.mu.Unlock()

	all, err := readFile(ctx, s.config.Path)
	if err != nil {
		return nil, tickets.NewStorageError("jsonl", "query", err)
	}
	return all, nil
}

func readFile(ctx context.Context, path string) ([]*traffic.Ticket, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var all []*traffic.Ticket
	err = DecodeLines(ctx, f, func(t *traffic.Ticket) error {
		all = append(all, t)
		return nil
	})
	return all, err
}

// DecodeLines decodes one ticket per line from r and calls fn for each.
// Blank lines are skipped. A partial trailing line (no newline yet) is
// ignored so readers can follow a file that is still being written.
func DecodeLines(ctx context.Context, r io.Reader, fn func(*traffic.Ticket) error) error {
	br := bufio.NewReader(r)
	for lineNo := 1; ; lineNo++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, err := br.ReadBytes('\n')
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if len(line) <= 1 {
			continue
		}

		var t traffic.Ticket
		if err := json.Unmarshal(line, &t); err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		if err := fn(&t); err != nil {
			return err
		}
	}
}
