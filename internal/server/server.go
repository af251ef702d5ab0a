package server

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/fridgetracker/internal/backup"
	"github.com/dukerupert/fridgetracker/internal/config"
	"github.com/dukerupert/fridgetracker/internal/handler"
	"github.com/dukerupert/fridgetracker/internal/inventory"
	"github.com/dukerupert/fridgetracker/internal/lookup"
	"github.com/dukerupert/fridgetracker/internal/middleware"
	"github.com/dukerupert/fridgetracker/internal/push"
	"github.com/dukerupert/fridgetracker/internal/remote"
	"github.com/dukerupert/fridgetracker/internal/store"
	"github.com/dukerupert/fridgetracker/internal/syncer"
	ws "github.com/dukerupert/fridgetracker/internal/websocket"
)

// Requests per minute per client on the endpoints that call out or parse text.
const lookupRateLimit = 30

type Server struct {
	db            *sql.DB
	hub           *ws.Hub
	inv           *inventory.Store
	engine        *syncer.Engine
	itemH         *handler.ItemHandler
	syncH         *handler.SyncHandler
	barcodeH      *handler.BarcodeHandler
	pushH         *handler.PushHandler
	backupH       *handler.BackupHandler
	healthH       *handler.HealthHandler
	pushStore     *store.PushStore
	rateLimiter   *middleware.RateLimiter
	backupManager *backup.Manager
	pushScheduler *push.Scheduler
	apiToken      string
	allowOrigin   string
	logger        *slog.Logger
}

// New wires the app around inv. rs is the remote the sync engine talks to;
// creds is the stored token for remotes that need one and may be nil.
func New(db *sql.DB, inv *inventory.Store, rs remote.Store, creds *store.NamedCredential, cfg *config.Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	opts := []syncer.Option{
		syncer.WithLogger(logger),
		syncer.WithStatusCallback(func(s syncer.Status) {
			hub.Broadcast(ws.StateMessage(ws.EntitySync, s))
		}),
	}
	if cfg.Remote.Timeout > 0 {
		opts = append(opts, syncer.WithTimeout(cfg.Remote.Timeout))
	}
	var setter handler.CredentialSetter
	if creds != nil {
		opts = append(opts, syncer.WithCredentials(creds))
		setter = creds
	}
	engine := syncer.New(inv, rs, store.NewCacheStore(db), opts...)

	backupStore := store.NewBackupStore(db)
	backupMgr := backup.NewManager(cfg.Backup, inv, backupStore, func(s backup.Status) {
		hub.Broadcast(ws.StateMessage(ws.EntityBackup, s))
	}, logger)

	pushSt := store.NewPushStore(db)
	var pushSvc *push.Service
	var pushSched *push.Scheduler
	var notifier handler.Notifier
	if cfg.Push.VAPIDPublicKey != "" && cfg.Push.VAPIDPrivateKey != "" {
		pushSvc = push.NewService(cfg.Push)
		pushSched = push.NewScheduler(pushSvc, pushSt, inv, cfg.Push.ReminderHour, logger)
		notifier = pushSched
	}

	return &Server{
		db:            db,
		hub:           hub,
		inv:           inv,
		engine:        engine,
		itemH:         handler.NewItemHandler(inv, engine, hub, logger.With("component", "item")),
		syncH:         handler.NewSyncHandler(engine, setter, inv, hub, logger.With("component", "sync_handler")),
		barcodeH:      handler.NewBarcodeHandler(lookup.NewClient(cfg.Lookup), logger.With("component", "barcode")),
		pushH:         handler.NewPushHandler(pushSt, pushSvc, notifier, logger.With("component", "push_handler")),
		backupH:       handler.NewBackupHandler(backupMgr, engine, hub, logger.With("component", "backup_handler")),
		healthH:       handler.NewHealthHandler(db, inv, engine),
		pushStore:     pushSt,
		rateLimiter:   middleware.NewRateLimiter(),
		backupManager: backupMgr,
		pushScheduler: pushSched,
		apiToken:      cfg.APIToken,
		allowOrigin:   cfg.AllowOrigin,
		logger:        logger,
	}
}

// Engine returns the sync engine for startup loading and shutdown.
func (s *Server) Engine() *syncer.Engine {
	return s.engine
}

// Hub returns the websocket hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// BackupManager returns the backup manager.
func (s *Server) BackupManager() *backup.Manager {
	return s.backupManager
}

// PushScheduler returns the expiry reminder scheduler, nil when push is not configured.
func (s *Server) PushScheduler() *push.Scheduler {
	return s.pushScheduler
}

// PushStore returns the push store for cleanup tasks.
func (s *Server) PushStore() *store.PushStore {
	return s.pushStore
}

// Start launches the background loops. They stop when ctx is cancelled or
// Stop is called.
func (s *Server) Start(ctx context.Context) {
	s.backupManager.Start(ctx)
	if s.pushScheduler != nil {
		s.pushScheduler.Start(ctx)
	}
	go s.rateLimiter.RunCleanup(ctx, 5*time.Minute)
}

// Stop halts the background loops and waits for in-flight pushes.
func (s *Server) Stop() {
	s.backupManager.Stop()
	if s.pushScheduler != nil {
		s.pushScheduler.Stop()
	}
	s.engine.Wait()
}

func (s *Server) greeting() []ws.Message {
	return []ws.Message{
		ws.StateMessage(ws.EntitySync, s.engine.Status()),
		ws.StateMessage(ws.EntityBackup, s.backupManager.Status()),
	}
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	outerMux.HandleFunc("GET /health", s.healthH.Health)
	outerMux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.greeting, s.logger.With("component", "websocket")))

	apiMux := http.NewServeMux()
	s.registerAPIRoutes(apiMux)
	outerMux.Handle("/api/", middleware.RequireToken(s.apiToken)(apiMux))

	cors := middleware.CORS(middleware.CORSConfig{
		AllowOrigin:  s.allowOrigin,
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "Authorization"},
	})
	return middleware.RequestLogger(s.logger.With("component", "http"))(cors(outerMux))
}

func (s *Server) rateLimited(route string, h http.HandlerFunc) http.Handler {
	return middleware.RateLimit(s.rateLimiter, route, middleware.RealIP, lookupRateLimit, time.Minute)(h)
}

func (s *Server) registerAPIRoutes(mux *http.ServeMux) {
	// Items, scoped to one household's fridge or pantry
	const bucket = "/api/households/{house}/{storage}"
	mux.HandleFunc("GET "+bucket+"/items", s.itemH.List)
	mux.HandleFunc("POST "+bucket+"/items", s.itemH.Create)
	mux.HandleFunc("PUT "+bucket+"/items/{id}", s.itemH.Update)
	mux.HandleFunc("DELETE "+bucket+"/items/{id}", s.itemH.Delete)
	mux.HandleFunc("POST "+bucket+"/items/{id}/quantity", s.itemH.AdjustQuantity)
	mux.HandleFunc("POST "+bucket+"/items/{id}/move", s.itemH.Move)
	mux.HandleFunc("POST "+bucket+"/quick-add", s.itemH.QuickAdd)
	mux.HandleFunc("GET "+bucket+"/stats", s.itemH.Stats)

	mux.HandleFunc("GET /api/presets", s.itemH.Presets)
	mux.HandleFunc("GET /api/expiring", s.itemH.Expiring)
	mux.HandleFunc("GET /api/export", s.itemH.Export)
	mux.HandleFunc("POST /api/import", s.itemH.Import)
	mux.Handle("POST /api/expiry/extract", s.rateLimited("extract", s.itemH.ExtractExpiry))
	mux.Handle("GET /api/barcode/{code}", s.rateLimited("barcode", s.barcodeH.Lookup))

	// Sync
	mux.HandleFunc("GET /api/sync/status", s.syncH.Status)
	mux.HandleFunc("POST /api/sync/pull", s.syncH.Pull)
	mux.HandleFunc("POST /api/sync/push", s.syncH.Push)
	mux.HandleFunc("PUT /api/sync/credential", s.syncH.SetCredential)

	// Push notifications
	mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
	mux.HandleFunc("GET /api/push/subscriptions", s.pushH.ListSubscriptions)
	mux.HandleFunc("DELETE /api/push/subscriptions/{id}", s.pushH.Unsubscribe)
	mux.HandleFunc("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)
	mux.HandleFunc("POST /api/push/test", s.pushH.TestNotification)

	// Snapshots
	mux.HandleFunc("GET /api/backups/status", s.backupH.Status)
	mux.HandleFunc("GET /api/backups", s.backupH.List)
	mux.HandleFunc("POST /api/backups", s.backupH.Create)
	mux.HandleFunc("POST /api/backups/{id}/restore", s.backupH.Restore)
}
