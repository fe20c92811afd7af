package handlers

import (
	"net/http"

	"github.com/profitpulse/backend/internal/artifact"
	"github.com/profitpulse/backend/pkg/logger"
)

// AdminHandler owns the mutating endpoints: currently only the
// artifact reload.
type AdminHandler struct {
	store    *artifact.Store
	onReload func(*artifact.Snapshot)
	logger   *logger.Logger
}

// NewAdminHandler creates the admin handler. onReload may be nil; when
// set it runs after every successful reload.
func NewAdminHandler(store *artifact.Store, onReload func(*artifact.Snapshot), log *logger.Logger) *AdminHandler {
	return &AdminHandler{store: store, onReload: onReload, logger: log}
}

// Reload re-reads the artifact directory and swaps the snapshot
// POST /api/admin/reload
func (h *AdminHandler) Reload(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Load(); err != nil {
		h.logger.WithError(err).Error("artifact reload failed")
		respondError(w, http.StatusInternalServerError, "Reload failed: "+err.Error())
		return
	}

	snap, err := h.store.Snapshot()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Reload failed: "+err.Error())
		return
	}

	if h.onReload != nil {
		h.onReload(snap)
	}

	respondSuccess(w, map[string]interface{}{
		"reloaded":     true,
		"generated_at": snap.Manifest.GeneratedAt,
	})
}
