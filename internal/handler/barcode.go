package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dukerupert/fridgetracker/internal/lookup"
)

type BarcodeHandler struct {
	client *lookup.Client
	logger *slog.Logger
}

func NewBarcodeHandler(client *lookup.Client, logger *slog.Logger) *BarcodeHandler {
	return &BarcodeHandler{client: client, logger: logger}
}

// Lookup handles GET /api/barcode/{code}. Unknown products still answer 200
// with the placeholder name so the form can be filled in by hand.
func (h *BarcodeHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")

	product, found, err := h.client.Lookup(r.Context(), code)
	if err != nil {
		if errors.Is(err, lookup.ErrInvalidCode) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Warn("barcode lookup", "code", code, "error", err)
		writeError(w, http.StatusBadGateway, "product database unavailable")
		return
	}

	if !found {
		product = lookup.Product{Code: code, Name: lookup.UnknownName}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"found":   found,
		"product": product,
	})
}
