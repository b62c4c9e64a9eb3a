// Package statusapi exposes the sync oracle over HTTP, mirroring this
// codebase's use of chi for small admin/metrics servers.
package statusapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/docgen"

	"github.com/starksync/engine/statesync/logscan"
)

// New builds the chi router exposing GET /status.
func New(oracle *logscan.Oracle) chi.Router {
	r := chi.NewRouter()
	r.Get("/status", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]bool{
			"is_major_syncing": oracle.IsMajorSyncing(),
			"is_offline":       oracle.IsOffline(),
		})
	})
	return r
}

// Routes renders the router's route tree as a JSON doc string.
func Routes(r chi.Router) string {
	return docgen.JSONRoutesDoc(r)
}
