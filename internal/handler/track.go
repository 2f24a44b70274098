package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

type trackRequest struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// TrackHandler forwards session events from the mini-app client to the
// sheet log. The sheet is the system of record for traffic; this endpoint
// only relays and never blocks the client on sheet availability.
func TrackHandler(sheets LogAppender) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req trackRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Type == "" {
			http.Error(w, "type is required", http.StatusBadRequest)
			return
		}

		if err := sheets.AppendLog(r.Context(), req.Type, req.Data); err != nil {
			slog.Warn("track event relay failed", "type", req.Type, "error", err)
		}

		w.WriteHeader(http.StatusAccepted)
	}
}
