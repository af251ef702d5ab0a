package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/dukerupert/fridgetracker/internal/datescan"
	"github.com/dukerupert/fridgetracker/internal/expiry"
	"github.com/dukerupert/fridgetracker/internal/inventory"
	"github.com/dukerupert/fridgetracker/internal/model"
	"github.com/dukerupert/fridgetracker/internal/websocket"
)

type ItemHandler struct {
	inv    *inventory.Store
	saver  Saver
	hub    Broadcaster
	logger *slog.Logger
}

func NewItemHandler(inv *inventory.Store, saver Saver, hub Broadcaster, logger *slog.Logger) *ItemHandler {
	return &ItemHandler{inv: inv, saver: saver, hub: hub, logger: logger}
}

// itemView is an item together with its freshness as of today.
type itemView struct {
	model.Item
	expiry.Assessment
}

func (h *ItemHandler) view(it model.Item) itemView {
	return itemView{Item: it, Assessment: expiry.Evaluate(it, h.inv.Now())}
}

// changed saves the inventory and tells clients about the change.
func (h *ItemHandler) changed(r *http.Request, msg websocket.Message) {
	if h.saver != nil {
		h.saver.SaveAsync(r.Context())
	}
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

// normalizeExpiry turns free text ("scad. 12/06/2025", "in 3 days") into
// YYYY-MM-DD. Input that cannot be understood is returned unchanged so
// validation reports it.
func (h *ItemHandler) normalizeExpiry(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	if iso, err := datescan.ParseInput(s, h.inv.Now()); err == nil {
		return iso
	}
	return s
}

func (h *ItemHandler) writeStoreError(w http.ResponseWriter, err error) {
	var verr *inventory.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, inventory.ErrNotFound):
		writeError(w, http.StatusNotFound, "item not found")
	case errors.Is(err, inventory.ErrUnknownBucket):
		writeError(w, http.StatusBadRequest, "unknown household or storage")
	default:
		h.logger.Error("inventory operation", "error", err)
		writeError(w, http.StatusInternalServerError, "inventory operation failed")
	}
}

// List handles GET /api/households/{house}/{storage}/items?filter=
func (h *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
	b, err := parseBucketParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	f, err := expiry.ParseFilter(r.URL.Query().Get("filter"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items := h.inv.List(b, f, h.inv.Now())
	out := make([]itemView, 0, len(items))
	for _, it := range items {
		out = append(out, h.view(it))
	}
	writeJSON(w, http.StatusOK, out)
}

// Create handles POST /api/households/{house}/{storage}/items
func (h *ItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	b, err := parseBucketParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req inventory.NewItem
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Expiry = h.normalizeExpiry(req.Expiry)
	if err := inventory.Validate(req); err != nil {
		h.writeStoreError(w, err)
		return
	}

	item, err := h.inv.AddItem(b, req)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	h.changed(r, websocket.ItemMessage("created", b, item.ID))
	writeJSON(w, http.StatusCreated, h.view(item))
}

// Update handles PUT /api/households/{house}/{storage}/items/{id}
func (h *ItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	b, err := parseBucketParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req inventory.Patch
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Expiry != nil {
		e := h.normalizeExpiry(*req.Expiry)
		req.Expiry = &e
	}
	if err := inventory.ValidatePatch(req); err != nil {
		h.writeStoreError(w, err)
		return
	}

	item, err := h.inv.UpdateItem(b, id, req)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	h.changed(r, websocket.ItemMessage("updated", b, id))
	writeJSON(w, http.StatusOK, h.view(item))
}

// Delete handles DELETE /api/households/{house}/{storage}/items/{id}
func (h *ItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	b, err := parseBucketParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	if !h.inv.DeleteItem(b, id) {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}

	h.changed(r, websocket.ItemMessage("deleted", b, id))
	w.WriteHeader(http.StatusNoContent)
}

type quantityRequest struct {
	Delta int `json:"delta"`
}

// AdjustQuantity handles POST /api/households/{house}/{storage}/items/{id}/quantity
func (h *ItemHandler) AdjustQuantity(w http.ResponseWriter, r *http.Request) {
	b, err := parseBucketParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req quantityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Delta == 0 {
		writeError(w, http.StatusBadRequest, "delta must not be zero")
		return
	}

	item, err := h.inv.AdjustQuantity(b, id, req.Delta)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	h.changed(r, websocket.ItemMessage("updated", b, id))
	writeJSON(w, http.StatusOK, h.view(item))
}

type moveRequest struct {
	Household string `json:"household"`
	Storage   string `json:"storage"`
}

// Move handles POST /api/households/{house}/{storage}/items/{id}/move
func (h *ItemHandler) Move(w http.ResponseWriter, r *http.Request) {
	from, err := parseBucketParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req moveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Household == "" {
		req.Household = string(from.Household)
	}
	if req.Storage == "" {
		req.Storage = string(from.Storage)
	}
	to, err := model.ParseBucket(req.Household, req.Storage)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	item, err := h.inv.MoveItem(from, to, id)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	msg := websocket.ItemMessage("moved", to, id)
	msg.Extra = map[string]any{"from": from.String()}
	h.changed(r, msg)
	writeJSON(w, http.StatusOK, h.view(item))
}

type quickAddRequest struct {
	Preset string `json:"preset"`
	Name   string `json:"name"`
	Days   int    `json:"days"`
}

// QuickAdd handles POST /api/households/{house}/{storage}/quick-add
func (h *ItemHandler) QuickAdd(w http.ResponseWriter, r *http.Request) {
	b, err := parseBucketParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req quickAddRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	var p inventory.Preset
	switch {
	case req.Preset != "":
		found, ok := inventory.FindPreset(req.Preset)
		if !ok {
			writeError(w, http.StatusNotFound, "unknown preset")
			return
		}
		p = found
	case strings.TrimSpace(req.Name) != "" && req.Days >= 0:
		p = inventory.Preset{Name: strings.TrimSpace(req.Name), Days: req.Days}
	default:
		writeError(w, http.StatusBadRequest, "preset or name and days are required")
		return
	}

	item, err := h.inv.QuickAdd(b, p)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	h.changed(r, websocket.ItemMessage("created", b, item.ID))
	writeJSON(w, http.StatusCreated, h.view(item))
}

// Presets handles GET /api/presets
func (h *ItemHandler) Presets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, inventory.DefaultPresets)
}

// Stats handles GET /api/households/{house}/{storage}/stats
func (h *ItemHandler) Stats(w http.ResponseWriter, r *http.Request) {
	b, err := parseBucketParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.inv.Stats(b, h.inv.Now()))
}

// Expiring handles GET /api/expiring?days=N
func (h *ItemHandler) Expiring(w http.ResponseWriter, r *http.Request) {
	days := expiry.ExpiringWindow
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "days must be a non-negative integer")
			return
		}
		days = n
	}
	writeJSON(w, http.StatusOK, h.inv.Expiring(h.inv.Now(), days))
}

// Export handles GET /api/export
func (h *ItemHandler) Export(w http.ResponseWriter, r *http.Request) {
	data, err := h.inv.Export()
	if err != nil {
		h.logger.Error("export inventory", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to export inventory")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="fridge_data.json"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

type importRequest struct {
	Household string `json:"household"`
	Storage   string `json:"storage"`
	Name      string `json:"name"`
	Expiry    string `json:"expiry"`
	Quantity  int    `json:"quantity"`
}

// Import handles POST /api/import. It adds one item on behalf of an
// external assistant; storage defaults to the fridge.
func (h *ItemHandler) Import(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Storage == "" {
		req.Storage = string(model.StorageFridge)
	}
	b, err := model.ParseBucket(req.Household, req.Storage)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	in := inventory.NewItem{
		Name:     req.Name,
		Expiry:   h.normalizeExpiry(req.Expiry),
		Quantity: req.Quantity,
	}
	if err := inventory.Validate(in); err != nil {
		h.writeStoreError(w, err)
		return
	}

	item, err := h.inv.AddItem(b, in)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	h.changed(r, websocket.ItemMessage("created", b, item.ID))
	writeJSON(w, http.StatusCreated, h.view(item))
}

type extractRequest struct {
	Text string `json:"text"`
}

// ExtractExpiry handles POST /api/expiry/extract. It finds an expiry date
// in recognized label text.
func (h *ItemHandler) ExtractExpiry(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	date, ok := datescan.Extract(req.Text)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"found": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"found": true, "expiry": date})
}
