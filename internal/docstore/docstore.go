// Package docstore serves a single JSON inventory document over HTTP with
// optimistic concurrency: every write bumps a version exposed as an ETag,
// and writers name the version they expect with If-Match.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/dukerupert/fridgetracker/internal/config"
	"github.com/dukerupert/fridgetracker/internal/middleware"
	"github.com/dukerupert/fridgetracker/internal/model"
	"github.com/dukerupert/fridgetracker/internal/store"
)

// maxDocumentSize caps the accepted request body.
const maxDocumentSize = 8 << 20

var errBadPrecondition = errors.New("malformed precondition header")

type Server struct {
	docs   *store.DocumentStore
	cfg    config.DocstoreConfig
	logger *slog.Logger
}

func New(docs *store.DocumentStore, cfg config.DocstoreConfig, logger *slog.Logger) *Server {
	if cfg.Name == "" {
		cfg.Name = "fridge"
	}
	return &Server{docs: docs, cfg: cfg, logger: logger.With("component", "docstore")}
}

// Seed stores an empty document unless one already exists.
func (s *Server) Seed(ctx context.Context) error {
	body, err := json.Marshal(model.Document{Inventory: model.NewInventory()})
	if err != nil {
		return fmt.Errorf("marshal empty document: %w", err)
	}
	return s.docs.Seed(ctx, s.cfg.Name, body)
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	for _, path := range []string{"/" + s.cfg.Name, "/" + s.cfg.Name + "/{$}"} {
		mux.HandleFunc("GET "+path, s.get)
		mux.HandleFunc("PUT "+path, s.put)
	}

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	cors := middleware.CORS(middleware.CORSConfig{
		AllowOrigin:   s.cfg.AllowOrigin,
		AllowMethods:  []string{"GET", "HEAD", "PUT", "OPTIONS"},
		AllowHeaders:  []string{"Content-Type", "Authorization", "If-Match", "If-None-Match"},
		ExposeHeaders: []string{"ETag"},
	})
	auth := middleware.RequireToken(s.cfg.Token)

	return middleware.RequestLogger(s.logger)(cors(auth(mux)))
}

func etag(version int64) string {
	return `"` + strconv.FormatInt(version, 10) + `"`
}

// parseETag accepts "N", W/"N" and bare N.
func parseETag(v string) (int64, error) {
	v = strings.TrimPrefix(strings.TrimSpace(v), "W/")
	v = strings.Trim(v, `"`)
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %q", errBadPrecondition, v)
	}
	return n, nil
}

// expectedVersion turns the request preconditions into the version the
// write must replace. nil means unconditional; 0 means create only.
func (s *Server) expectedVersion(ctx context.Context, r *http.Request) (*int64, error) {
	if inm := strings.TrimSpace(r.Header.Get("If-None-Match")); inm != "" {
		if inm != "*" {
			return nil, fmt.Errorf("%w: If-None-Match supports only *", errBadPrecondition)
		}
		zero := int64(0)
		return &zero, nil
	}

	im := strings.TrimSpace(r.Header.Get("If-Match"))
	if im == "" {
		return nil, nil
	}
	if im == "*" {
		doc, err := s.docs.Get(ctx, s.cfg.Name)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			return nil, store.ErrVersionMismatch
		}
		return &doc.Version, nil
	}
	v, err := parseETag(im)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	doc, err := s.docs.Get(r.Context(), s.cfg.Name)
	if err != nil {
		s.logger.Error("read document", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read document")
		return
	}
	if doc == nil {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}

	w.Header().Set("ETag", etag(doc.Version))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.Body)))
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		w.Write(doc.Body)
	}
}

func (s *Server) put(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxDocumentSize))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "document too large")
		return
	}
	doc, err := model.DecodeDocument(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	body, err := json.Marshal(doc)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to encode document")
		return
	}

	expected, err := s.expectedVersion(r.Context(), r)
	switch {
	case errors.Is(err, errBadPrecondition):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, store.ErrVersionMismatch):
		writeError(w, http.StatusPreconditionFailed, "document does not exist")
		return
	case err != nil:
		s.logger.Error("read document version", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read document")
		return
	}

	version, err := s.docs.Put(r.Context(), s.cfg.Name, expected, body)
	if errors.Is(err, store.ErrVersionMismatch) {
		if version > 0 {
			w.Header().Set("ETag", etag(version))
		}
		writeError(w, http.StatusPreconditionFailed, "document was modified by someone else")
		return
	}
	if err != nil {
		s.logger.Error("write document", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save document")
		return
	}

	s.logger.Info("document saved", "version", version, "items", doc.Inventory.Len())
	w.Header().Set("ETag", etag(version))
	writeJSON(w, http.StatusOK, map[string]any{"status": "saved", "version": version})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
