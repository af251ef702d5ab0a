// Package syncer keeps the in-memory inventory, a durable local cache and a
// remote document eventually consistent.
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/fridgetracker/internal/inventory"
	"github.com/dukerupert/fridgetracker/internal/model"
	"github.com/dukerupert/fridgetracker/internal/remote"
)

var (
	ErrRemoteUnavailable = errors.New("sync target unreachable")
	ErrVersionConflict   = errors.New("version conflict persisted after retry")
	ErrAuthRequired      = errors.New("remote requires re-authorization")
)

// State is the outcome of the latest sync attempt, reported for UI feedback.
type State string

const (
	StateIdle         State = "idle"
	StatePulling      State = "pulling"
	StatePushing      State = "pushing"
	StateSynced       State = "synced"
	StateOffline      State = "offline"
	StateAuthRequired State = "auth_required"
)

// CacheKey is the key the inventory document is cached under.
const CacheKey = "inventory"

// Cache is the durable local copy of the document.
type Cache interface {
	Put(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
}

// Credentials is discarded when the remote rejects it.
type Credentials interface {
	Clear(ctx context.Context) error
}

// Status is a point-in-time view of the engine.
type Status struct {
	State    State     `json:"state"`
	Version  string    `json:"version,omitempty"`
	LastSync time.Time `json:"last_sync,omitempty"`
	Pending  bool      `json:"pending"`
	Error    string    `json:"error,omitempty"`
}

// StatusCallback is called whenever the engine state changes.
type StatusCallback func(Status)

type Option func(*Engine)

// WithTimeout bounds every remote call. Defaults to remote.DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.timeout = d
	}
}

// WithCredentials sets the credential to discard on authorization failure.
func WithCredentials(c Credentials) Option {
	return func(e *Engine) {
		e.creds = c
	}
}

func WithStatusCallback(cb StatusCallback) Option {
	return func(e *Engine) {
		e.callback = cb
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// Engine is the only writer of the version token. Pulls are serialized and
// at most one push runs at a time; a push requested meanwhile is folded
// into a single pending push that runs with the latest inventory.
type Engine struct {
	inv      *inventory.Store
	remote   remote.Store
	cache    Cache
	creds    Credentials
	callback StatusCallback
	logger   *slog.Logger
	timeout  time.Duration

	pullMu  sync.Mutex
	cacheMu sync.Mutex

	mu      sync.Mutex
	status  Status
	version string
	pushing bool
	pending bool

	wg sync.WaitGroup
}

func New(inv *inventory.Store, rs remote.Store, cache Cache, opts ...Option) *Engine {
	e := &Engine{
		inv:     inv,
		remote:  rs,
		cache:   cache,
		logger:  slog.Default(),
		timeout: remote.DefaultTimeout,
		status:  Status{State: StateIdle},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "sync")
	return e
}

// Status returns the current engine status.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Version returns the remembered remote version token.
func (e *Engine) Version() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.version
}

func (e *Engine) setVersion(v string) {
	e.mu.Lock()
	e.version = v
	e.mu.Unlock()
}

func (e *Engine) setState(state State, err error) {
	e.mu.Lock()
	e.status.State = state
	e.status.Version = e.version
	e.status.Pending = e.pending
	e.status.Error = ""
	if err != nil {
		e.status.Error = err.Error()
	}
	if state == StateSynced {
		e.status.LastSync = time.Now()
	}
	status := e.status
	cb := e.callback
	e.mu.Unlock()

	if cb != nil {
		cb(status)
	}
}

// remoteContext detaches from the caller's cancellation so a started sync
// runs to completion, keeping only the per-call timeout.
func (e *Engine) remoteContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
}

// Pull replaces the inventory with the remote document. On any failure the
// local cache is loaded instead, or the inventory is left as it is when
// there is no usable cache.
func (e *Engine) Pull(ctx context.Context) (State, error) {
	e.pullMu.Lock()
	defer e.pullMu.Unlock()

	e.setState(StatePulling, nil)

	rctx, cancel := e.remoteContext(ctx)
	snap, err := e.remote.Fetch(rctx)
	cancel()
	if err == nil {
		e.inv.Replace(snap.Document.Inventory)
		e.setVersion(snap.Version)
		if err := e.writeCache(ctx, snap.Document); err != nil {
			e.logger.Warn("cache write after pull failed", "error", err)
		}
		e.logger.Info("pulled inventory", "version", snap.Version, "items", e.inv.Len())
		e.setState(StateSynced, nil)
		return StateSynced, nil
	}

	e.logger.Warn("pull failed, loading local cache", "error", err)
	if loadErr := e.LoadCache(context.WithoutCancel(ctx)); loadErr != nil {
		e.logger.Warn("load cache", "error", loadErr)
	}
	return e.fail(ctx, "pull", err)
}

// LoadCache replaces the inventory with the cached document, if any.
func (e *Engine) LoadCache(ctx context.Context) error {
	data, ok, err := e.cache.Get(ctx, CacheKey)
	if err != nil {
		return fmt.Errorf("read cache: %w", err)
	}
	if !ok {
		return nil
	}
	doc, err := model.DecodeDocument(data)
	if err != nil {
		return fmt.Errorf("decode cache: %w", err)
	}
	e.inv.Replace(doc.Inventory)
	return nil
}

// SaveLocal writes the current inventory to the local cache.
func (e *Engine) SaveLocal(ctx context.Context) error {
	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()
	return e.putCache(ctx, e.inv.Document())
}

func (e *Engine) writeCache(ctx context.Context, doc *model.Document) error {
	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()
	return e.putCache(ctx, doc)
}

func (e *Engine) putCache(ctx context.Context, doc *model.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	if err := e.cache.Put(context.WithoutCancel(ctx), CacheKey, data); err != nil {
		return fmt.Errorf("write cache: %w", err)
	}
	return nil
}

// Push writes the inventory to the local cache and then to the remote.
// If a push is already running the call returns StatePushing at once and
// the running push follows up with the latest inventory.
func (e *Engine) Push(ctx context.Context) (State, error) {
	if err := e.SaveLocal(ctx); err != nil {
		e.logger.Error("local save failed", "error", err)
	}
	return e.push(ctx)
}

// SaveAsync writes the local cache synchronously and pushes in the
// background.
func (e *Engine) SaveAsync(ctx context.Context) {
	if err := e.SaveLocal(ctx); err != nil {
		e.logger.Error("local save failed", "error", err)
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.push(context.WithoutCancel(ctx))
	}()
}

// Wait blocks until background pushes started by SaveAsync finish.
func (e *Engine) Wait() {
	e.wg.Wait()
}

func (e *Engine) push(ctx context.Context) (State, error) {
	e.mu.Lock()
	if e.pushing {
		e.pending = true
		e.mu.Unlock()
		e.logger.Debug("push in flight, queued follow-up")
		return StatePushing, nil
	}
	e.pushing = true
	e.mu.Unlock()

	for {
		state, err := e.pushOnce(ctx, e.inv.Document())

		e.mu.Lock()
		if !e.pending {
			e.pushing = false
			e.mu.Unlock()
			return state, err
		}
		e.pending = false
		e.mu.Unlock()
	}
}

func (e *Engine) pushOnce(ctx context.Context, doc *model.Document) (State, error) {
	e.setState(StatePushing, nil)

	err := e.attemptWrite(ctx, doc)
	if errors.Is(err, remote.ErrConflict) {
		e.logger.Info("version conflict, refetching version and retrying")
		e.setVersion("")
		err = e.attemptWrite(ctx, doc)
		if errors.Is(err, remote.ErrConflict) {
			return e.fail(ctx, "push", fmt.Errorf("%w: %w", ErrVersionConflict, err))
		}
	}
	if err != nil {
		return e.fail(ctx, "push", err)
	}

	e.logger.Info("pushed inventory", "version", e.Version())
	e.setState(StateSynced, nil)
	return StateSynced, nil
}

// attemptWrite performs one conditional write, fetching the version token
// first when it is unknown.
func (e *Engine) attemptWrite(ctx context.Context, doc *model.Document) error {
	version := e.Version()
	if version == "" {
		rctx, cancel := e.remoteContext(ctx)
		v, err := e.remote.Version(rctx)
		cancel()
		switch {
		case errors.Is(err, remote.ErrNotFound):
			// Nothing there yet; the write creates it.
		case err != nil:
			return err
		default:
			version = v
		}
	}

	rctx, cancel := e.remoteContext(ctx)
	defer cancel()
	next, err := e.remote.Write(rctx, version, doc)
	if err != nil {
		return err
	}
	e.setVersion(next)
	return nil
}

// fail records a failed sync attempt. Authorization failures discard the
// stored credential; everything else leaves the engine offline.
func (e *Engine) fail(ctx context.Context, op string, err error) (State, error) {
	if errors.Is(err, remote.ErrUnauthorized) {
		if e.creds != nil {
			if cerr := e.creds.Clear(context.WithoutCancel(ctx)); cerr != nil {
				e.logger.Error("discard credential", "error", cerr)
			}
		}
		e.setVersion("")
		wrapped := fmt.Errorf("%s: %w: %w", op, ErrAuthRequired, err)
		e.logger.Warn("remote rejected credentials", "op", op)
		e.setState(StateAuthRequired, wrapped)
		return StateAuthRequired, wrapped
	}

	wrapped := fmt.Errorf("%s: %w: %w", op, ErrRemoteUnavailable, err)
	e.logger.Warn("sync failed", "op", op, "error", err)
	e.setState(StateOffline, wrapped)
	return StateOffline, wrapped
}
