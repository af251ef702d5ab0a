package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/fridgetracker/internal/backup"
	"github.com/dukerupert/fridgetracker/internal/model"
	"github.com/dukerupert/fridgetracker/internal/websocket"
)

type BackupHandler struct {
	manager *backup.Manager
	engine  Syncer
	hub     Broadcaster
	logger  *slog.Logger
}

func NewBackupHandler(m *backup.Manager, engine Syncer, hub Broadcaster, logger *slog.Logger) *BackupHandler {
	return &BackupHandler{manager: m, engine: engine, hub: hub, logger: logger}
}

type passphraseRequest struct {
	Passphrase string `json:"passphrase"`
}

func writeBackupError(w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	switch {
	case errors.Is(err, backup.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, backup.ErrNoPassphrase):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, backup.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, backup.ErrNotCompleted):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, backup.ErrWrongPassphrase):
		writeError(w, http.StatusForbidden, "wrong passphrase")
	default:
		logger.Error(op, "error", err)
		writeError(w, http.StatusInternalServerError, op+" failed")
	}
}

// Status handles GET /api/backups/status
func (h *BackupHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.manager.Status())
}

// Create handles POST /api/backups
func (h *BackupHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req passphraseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	rec, err := h.manager.RunNow(r.Context(), req.Passphrase)
	if err != nil {
		writeBackupError(w, h.logger, "backup", err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// List handles GET /api/backups?limit=N
func (h *BackupHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	backups, err := h.manager.List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list backups")
		return
	}
	if backups == nil {
		backups = []model.Backup{}
	}
	writeJSON(w, http.StatusOK, backups)
}

// Restore handles POST /api/backups/{id}/restore. The restored inventory is
// pushed so the remote matches it.
func (h *BackupHandler) Restore(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req passphraseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	doc, err := h.manager.Restore(r.Context(), id, req.Passphrase)
	if err != nil {
		writeBackupError(w, h.logger, "restore", err)
		return
	}

	items := doc.Inventory.Len()
	if h.hub != nil {
		h.hub.Broadcast(websocket.InventoryMessage("restored", items))
	}

	resp := map[string]any{"restored": id, "items": items}
	if h.engine != nil {
		state, err := h.engine.Push(r.Context())
		resp["sync"] = state
		if err != nil {
			resp["sync_error"] = err.Error()
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
