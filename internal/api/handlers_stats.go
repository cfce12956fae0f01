package api

import (
	"encoding/json"
	"net/http"
)

func (s *Server) handleLLMStats(w http.ResponseWriter, r *http.Request) {
	if s.gen == nil || s.gen.Stats == nil {
		jsonError(w, "llm stats unavailable", http.StatusServiceUnavailable)
		return
	}

	resp := map[string]any{
		"model":    s.gen.Model(),
		"provider": s.gen.Provider(),
		"stats":    s.gen.Stats.Snapshot(),
	}
	if s.orchestrator != nil {
		resp["queue_depth"] = s.orchestrator.QueueDepth()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
