package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"mercator-hq/tollgate/pkg/pipeline"
	"mercator-hq/tollgate/pkg/server/middleware"
	"mercator-hq/tollgate/pkg/stats"
	"mercator-hq/tollgate/pkg/tickets"
	"mercator-hq/tollgate/pkg/tickets/export"
	"mercator-hq/tollgate/pkg/traffic"
)

// StatusResponse is the body of GET /v1/status.
type StatusResponse struct {
	Running    bool               `json:"running"`
	Workers    int                `json:"workers"`
	QueueDepth int                `json:"queue_depth"`
	Board      pipeline.BoardView `json:"board"`
	Stats      traffic.Stats      `json:"stats"`
	Timestamp  time.Time          `json:"timestamp"`
}

// TicketsResponse is the body of GET /v1/tickets.
type TicketsResponse struct {
	Tickets []*traffic.Ticket `json:"tickets"`
	Total   int64             `json:"total"`
	Limit   int               `json:"limit"`
	Offset  int               `json:"offset"`
}

// HistoryResponse is the body of GET /v1/stats/history.
type HistoryResponse struct {
	Snapshots []stats.Snapshot `json:"snapshots"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	p := s.opts.Pipeline
	if p == nil {
		middleware.WriteError(w, r, http.StatusServiceUnavailable, middleware.CodeUnavailable, "pipeline not configured")
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{
		Running:    p.Running(),
		Workers:    p.Workers(),
		QueueDepth: p.QueueDepth(),
		Board:      p.Board().View(),
		Stats:      p.Stats(),
		Timestamp:  time.Now().UTC(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.opts.Pipeline == nil {
		middleware.WriteError(w, r, http.StatusServiceUnavailable, middleware.CodeUnavailable, "pipeline not configured")
		return
	}
	writeJSON(w, http.StatusOK, s.opts.Pipeline.Stats())
}

func (s *Server) handleStatsHistory(w http.ResponseWriter, r *http.Request) {
	if s.opts.History == nil {
		middleware.WriteError(w, r, http.StatusServiceUnavailable, middleware.CodeUnavailable, "statistics history is disabled")
		return
	}
	rng, err := parseRange(r.URL.Query())
	if err != nil {
		middleware.WriteError(w, r, http.StatusBadRequest, middleware.CodeInvalidRequest, err.Error())
		return
	}
	snaps, err := s.opts.History.List(r.Context(), rng)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "failed to list statistics history", "error", err)
		middleware.WriteError(w, r, http.StatusInternalServerError, middleware.CodeInternal, "failed to list statistics history")
		return
	}
	if snaps == nil {
		snaps = []stats.Snapshot{}
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Snapshots: snaps})
}

func (s *Server) handleTickets(w http.ResponseWriter, r *http.Request) {
	q, err := parseTicketQuery(r.URL.Query())
	if err != nil {
		middleware.WriteError(w, r, http.StatusBadRequest, middleware.CodeInvalidRequest, err.Error())
		return
	}

	list, total, err := s.queryTickets(r.Context(), q)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "ticket query failed", "error", err)
		middleware.WriteError(w, r, http.StatusInternalServerError, middleware.CodeInternal, "ticket query failed")
		return
	}
	writeJSON(w, http.StatusOK, TicketsResponse{
		Tickets: list,
		Total:   total,
		Limit:   q.Limit,
		Offset:  q.Offset,
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	v := r.URL.Query()
	q, err := parseTicketQuery(v)
	if err != nil {
		middleware.WriteError(w, r, http.StatusBadRequest, middleware.CodeInvalidRequest, err.Error())
		return
	}
	if v.Get("limit") == "" {
		q.Limit = tickets.MaxLimit
	}

	format := v.Get("format")
	if format == "" {
		format = "csv"
	}
	exporter, err := export.New(format, s.opts.Export)
	if err != nil {
		middleware.WriteError(w, r, http.StatusBadRequest, middleware.CodeInvalidRequest, err.Error())
		return
	}

	list, _, err := s.queryTickets(r.Context(), q)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "ticket query failed", "error", err)
		middleware.WriteError(w, r, http.StatusInternalServerError, middleware.CodeInternal, "ticket query failed")
		return
	}

	contentType := "text/csv"
	if format == "json" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename=tickets."+format)
	if err := exporter.Export(r.Context(), list, w); err != nil {
		s.logger.ErrorContext(r.Context(), "ticket export failed", "format", format, "error", err)
	}
}

// queryTickets answers from storage when configured, otherwise from the
// pipeline's recent tickets.
func (s *Server) queryTickets(ctx context.Context, q *tickets.Query) ([]*traffic.Ticket, int64, error) {
	if s.opts.Tickets != nil {
		list, err := s.opts.Tickets.Query(ctx, q)
		if err != nil {
			return nil, 0, err
		}
		total, err := s.opts.Tickets.Count(ctx, q)
		if err != nil {
			return nil, 0, err
		}
		return list, total, nil
	}

	var recent []*traffic.Ticket
	if s.opts.Pipeline != nil {
		recent = s.opts.Pipeline.Tickets()
	}
	var total int64
	for _, t := range recent {
		if q.Matches(t) {
			total++
		}
	}
	return q.Apply(recent), total, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
