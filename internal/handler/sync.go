package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/fridgetracker/internal/inventory"
	"github.com/dukerupert/fridgetracker/internal/syncer"
	"github.com/dukerupert/fridgetracker/internal/websocket"
)

// CredentialSetter stores the token used to reach the remote.
type CredentialSetter interface {
	Set(ctx context.Context, secret string) error
}

type SyncHandler struct {
	engine Syncer
	creds  CredentialSetter
	inv    *inventory.Store
	hub    Broadcaster
	logger *slog.Logger
}

func NewSyncHandler(engine Syncer, creds CredentialSetter, inv *inventory.Store, hub Broadcaster, logger *slog.Logger) *SyncHandler {
	return &SyncHandler{engine: engine, creds: creds, inv: inv, hub: hub, logger: logger}
}

type syncResponse struct {
	State syncer.State  `json:"state"`
	Error string        `json:"error,omitempty"`
	Items int           `json:"items"`
	Sync  syncer.Status `json:"status"`
}

func (h *SyncHandler) respond(w http.ResponseWriter, state syncer.State, err error) {
	resp := syncResponse{State: state, Items: h.inv.Len(), Sync: h.engine.Status()}
	status := http.StatusOK
	if err != nil {
		resp.Error = err.Error()
		switch {
		case errors.Is(err, syncer.ErrAuthRequired):
			status = http.StatusUnauthorized
		default:
			// The local cache still holds the data; report the remote as
			// unreachable without failing the app.
			status = http.StatusBadGateway
		}
	}
	writeJSON(w, status, resp)
}

// Status handles GET /api/sync/status
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Status())
}

// Pull handles POST /api/sync/pull
func (h *SyncHandler) Pull(w http.ResponseWriter, r *http.Request) {
	state, err := h.engine.Pull(r.Context())
	if h.hub != nil {
		h.hub.Broadcast(websocket.InventoryMessage("replaced", h.inv.Len()))
	}
	h.respond(w, state, err)
}

// Push handles POST /api/sync/push
func (h *SyncHandler) Push(w http.ResponseWriter, r *http.Request) {
	state, err := h.engine.Push(r.Context())
	h.respond(w, state, err)
}

type credentialRequest struct {
	Token string `json:"token"`
}

// SetCredential handles PUT /api/sync/credential. It stores a new token and
// pulls with it.
func (h *SyncHandler) SetCredential(w http.ResponseWriter, r *http.Request) {
	if h.creds == nil {
		writeError(w, http.StatusNotFound, "remote does not use a token")
		return
	}

	var req credentialRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Token = strings.TrimSpace(req.Token)
	if req.Token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	if err := h.creds.Set(r.Context(), req.Token); err != nil {
		h.logger.Error("store credential", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to store token")
		return
	}

	h.Pull(w, r)
}
