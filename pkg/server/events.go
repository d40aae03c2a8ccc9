package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"mercator-hq/tollgate/pkg/pipeline"
	"mercator-hq/tollgate/pkg/server/middleware"
)

// heartbeatInterval is how often an idle event stream sends a comment line.
const heartbeatInterval = 15 * time.Second

// handleEvents streams pipeline events as server-sent events until the client
// disconnects or the pipeline stops. ?types=a,b limits the stream to the
// listed event types.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.opts.Pipeline == nil {
		middleware.WriteError(w, r, http.StatusServiceUnavailable, middleware.CodeUnavailable, "pipeline not configured")
		return
	}

	var only map[pipeline.EventType]bool
	if types := r.URL.Query().Get("types"); types != "" {
		only = make(map[pipeline.EventType]bool)
		for _, t := range strings.Split(types, ",") {
			only[pipeline.EventType(strings.TrimSpace(t))] = true
		}
	}

	rc := http.NewResponseController(w)
	// The stream outlives the server's write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	bus := s.opts.Pipeline.Events()
	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	if err := rc.Flush(); err != nil {
		s.logger.WarnContext(r.Context(), "event stream cannot flush", "error", err)
		return
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			if err := rc.Flush(); err != nil {
				return
			}
		case e, ok := <-sub.C():
			if !ok {
				return
			}
			if only != nil && !only[e.Type] {
				continue
			}
			data, err := json.Marshal(e)
			if err != nil {
				s.logger.ErrorContext(r.Context(), "failed to encode event", "type", e.Type, "error", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Type, data)
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}
