package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/dukerupert/fridgetracker/internal/model"
	"github.com/dukerupert/fridgetracker/internal/syncer"
	"github.com/dukerupert/fridgetracker/internal/websocket"
)

const maxBodyBytes = 1 << 20

// Broadcaster fans change notifications out to connected clients.
type Broadcaster interface {
	Broadcast(msg websocket.Message)
}

// Saver persists the inventory after a mutation: local cache first, then a
// background push to the remote.
type Saver interface {
	SaveAsync(ctx context.Context)
}

// Syncer is the part of the sync engine the HTTP surface drives.
type Syncer interface {
	Saver
	Pull(ctx context.Context) (syncer.State, error)
	Push(ctx context.Context) (syncer.State, error)
	Status() syncer.Status
}

func parseIDParam(r *http.Request) (int64, error) {
	idStr := r.PathValue("id")
	return strconv.ParseInt(idStr, 10, 64)
}

func parseBucketParam(r *http.Request) (model.Bucket, error) {
	return model.ParseBucket(r.PathValue("house"), r.PathValue("storage"))
}

// decodeJSON reads a bounded JSON body into v. An empty body leaves v as is.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
