package api

import (
	"encoding/json"
	"net/http"

	"github.com/kyeongry/fastmatch-admin-sub000/internal/templatestore"
)

// handleListTemplates lists the template catalogue and which template
// each stage is configured to use.
func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil {
		jsonError(w, "template catalogue unavailable", http.StatusNotImplemented)
		return
	}

	infos, err := s.templates.List(r.Context())
	if err != nil {
		jsonError(w, "failed to list templates: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if infos == nil {
		infos = []templatestore.Info{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"templates": infos,
		"stages":    s.cfg.Templates,
	})
}
