package api

import (
	"net/http"
)

func (s *Server) handleExtractionStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"methods":     s.proc.Latency().Snapshot(),
		"queue_depth": s.orchestrator.QueueDepth(),
	})
}
