package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dukerupert/fridgetracker/internal/expiry"
	"github.com/dukerupert/fridgetracker/internal/inventory"
	"github.com/dukerupert/fridgetracker/internal/model"
	"github.com/dukerupert/fridgetracker/internal/store"
)

var (
	ErrNotConfigured = errors.New("backup not configured: S3 credentials missing")
	ErrNoPassphrase  = errors.New("backup passphrase not configured")
	ErrNotFound      = errors.New("backup not found")
	ErrNotCompleted  = errors.New("backup did not complete")
)

const (
	DefaultPrefix        = "snapshots/"
	DefaultRetentionDays = 30
)

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

func (c S3Config) complete() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

// Config holds backup manager configuration.
type Config struct {
	S3     S3Config
	Prefix string
	// Passphrase is used by scheduled snapshots and when a caller does not
	// supply one.
	Passphrase string
	// ScheduleHour is the hour of day (local time) of the daily snapshot.
	// Negative disables the schedule.
	ScheduleHour  int
	RetentionDays int
}

// State represents the backup manager state.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateDisabled State = "disabled"
	StateError    State = "error"
)

// Status holds the current backup manager status.
type Status struct {
	State      State      `json:"state"`
	LastBackup *time.Time `json:"last_backup,omitempty"`
	Error      string     `json:"error,omitempty"`
	InProgress bool       `json:"in_progress"`
}

// StatusCallback is called whenever the backup state changes.
type StatusCallback func(Status)

// Manager takes encrypted snapshots of the inventory document and keeps
// them in S3-compatible storage.
type Manager struct {
	mu       sync.RWMutex
	cfg      Config
	status   Status
	callback StatusCallback
	logger   *slog.Logger

	inv         *inventory.Store
	backupStore *store.BackupStore
	client      s3Client
	now         func() time.Time

	runMu   sync.Mutex
	lastRun string

	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates a new backup manager. It is disabled unless the S3
// configuration is complete.
func NewManager(cfg Config, inv *inventory.Store, bs *store.BackupStore, callback StatusCallback, logger *slog.Logger) *Manager {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = DefaultRetentionDays
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		cfg:         cfg,
		inv:         inv,
		backupStore: bs,
		callback:    callback,
		logger:      logger.With("component", "backup"),
		now:         time.Now,
		status:      Status{State: StateDisabled},
	}

	if cfg.S3.complete() {
		m.client = newS3Client(cfg.S3)
		m.status.State = StateIdle
	}

	return m
}

func newS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Enabled reports whether S3 storage is configured.
func (m *Manager) Enabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.client != nil
}

// Start begins the scheduled snapshot loop.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.status.State == StateDisabled || m.cfg.ScheduleHour < 0 {
		m.mu.Unlock()
		return
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	m.mu.Unlock()

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(1 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.checkSchedule(ctx)
			}
		}
	}()
}

// Stop gracefully stops the backup manager.
func (m *Manager) Stop() {
	m.mu.RLock()
	cancel := m.cancel
	done := m.done
	m.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Status returns the current backup status.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
	if m.callback != nil {
		m.callback(s)
	}
}

// checkSchedule runs at most one snapshot per day, at or after the
// configured hour.
func (m *Manager) checkSchedule(ctx context.Context) {
	now := m.now()
	if now.Hour() < m.cfg.ScheduleHour {
		return
	}
	today := expiry.Today(now)

	m.runMu.Lock()
	if m.lastRun == today {
		m.runMu.Unlock()
		return
	}
	m.lastRun = today
	m.runMu.Unlock()

	if m.cfg.Passphrase == "" {
		m.logger.Warn("skipping scheduled snapshot, no passphrase configured")
		return
	}

	if _, err := m.RunNow(ctx, ""); err != nil {
		m.logger.Error("scheduled snapshot failed", "error", err)
	}
	if err := m.Cleanup(ctx, m.cfg.RetentionDays); err != nil {
		m.logger.Error("cleanup failed", "error", err)
	}
}

func (m *Manager) passphrase(p string) (string, error) {
	if p != "" {
		return p, nil
	}
	if m.cfg.Passphrase != "" {
		return m.cfg.Passphrase, nil
	}
	return "", ErrNoPassphrase
}

// RunNow encrypts the current inventory document and uploads it. An empty
// passphrase falls back to the configured one.
func (m *Manager) RunNow(ctx context.Context, passphrase string) (*model.Backup, error) {
	m.mu.RLock()
	client := m.client
	bucket := m.cfg.S3.Bucket
	m.mu.RUnlock()
	if client == nil {
		return nil, ErrNotConfigured
	}

	passphrase, err := m.passphrase(passphrase)
	if err != nil {
		return nil, err
	}

	m.setStatus(Status{State: StateRunning, InProgress: true})

	started := m.now().UTC()
	filename := fmt.Sprintf("fridge-%s.json.enc", started.Format("2006-01-02T150405Z"))
	s3Key := m.cfg.Prefix + filename

	record, err := m.backupStore.Create(filename, s3Key)
	if err != nil {
		m.setStatus(Status{State: StateError, Error: err.Error()})
		return nil, fmt.Errorf("create backup record: %w", err)
	}

	fail := func(op string, err error) (*model.Backup, error) {
		if uerr := m.backupStore.UpdateStatus(record.ID, model.BackupStatusFailed, err.Error()); uerr != nil {
			m.logger.Error("mark backup failed", "id", record.ID, "error", uerr)
		}
		m.setStatus(Status{State: StateError, Error: err.Error()})
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := m.backupStore.UpdateStatus(record.ID, model.BackupStatusUploading, ""); err != nil {
		return fail("update status", err)
	}

	doc := m.inv.Document()
	plaintext, err := json.Marshal(doc)
	if err != nil {
		return fail("marshal document", err)
	}

	salt, err := GenerateSalt()
	if err != nil {
		return fail("encrypt", err)
	}
	sealed, err := Encrypt(plaintext, passphrase, salt)
	if err != nil {
		return fail("encrypt", err)
	}

	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(s3Key),
		Body:          bytes.NewReader(sealed),
		ContentLength: aws.Int64(int64(len(sealed))),
		ContentType:   aws.String("application/octet-stream"),
	})
	if err != nil {
		return fail("upload to s3", err)
	}

	items := doc.Inventory.Len()
	if err := m.backupStore.UpdateCompleted(record.ID, int64(len(sealed)), items); err != nil {
		return fail("update completed", err)
	}

	finished := m.now().UTC()
	m.setStatus(Status{State: StateIdle, LastBackup: &finished})
	m.logger.Info("snapshot uploaded", "id", record.ID, "key", s3Key, "items", items, "bytes", len(sealed))

	return m.backupStore.GetByID(record.ID)
}

// List returns the most recent snapshot records.
func (m *Manager) List(limit int) ([]model.Backup, error) {
	return m.backupStore.List(limit)
}

// Fetch downloads and decrypts a completed snapshot without applying it.
func (m *Manager) Fetch(ctx context.Context, id int64, passphrase string) (*model.Document, error) {
	m.mu.RLock()
	client := m.client
	bucket := m.cfg.S3.Bucket
	m.mu.RUnlock()
	if client == nil {
		return nil, ErrNotConfigured
	}

	passphrase, err := m.passphrase(passphrase)
	if err != nil {
		return nil, err
	}

	record, err := m.backupStore.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("get backup: %w", err)
	}
	if record == nil {
		return nil, ErrNotFound
	}
	if record.Status != model.BackupStatusCompleted {
		return nil, ErrNotCompleted
	}

	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(record.S3Key),
	})
	if err != nil {
		return nil, fmt.Errorf("download from s3: %w", err)
	}
	defer result.Body.Close()

	sealed, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	plaintext, err := Decrypt(sealed, passphrase)
	if err != nil {
		return nil, fmt.Errorf("decrypt snapshot: %w", err)
	}

	doc, err := model.DecodeDocument(plaintext)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return doc, nil
}

// Restore replaces the running inventory with a snapshot. The caller is
// responsible for pushing the restored inventory to the remote.
func (m *Manager) Restore(ctx context.Context, id int64, passphrase string) (*model.Document, error) {
	doc, err := m.Fetch(ctx, id, passphrase)
	if err != nil {
		return nil, err
	}
	m.inv.Replace(doc.Inventory)
	m.logger.Info("snapshot restored", "id", id, "items", doc.Inventory.Len())
	return doc, nil
}

// Cleanup deletes snapshots older than the retention period.
func (m *Manager) Cleanup(ctx context.Context, retentionDays int) error {
	m.mu.RLock()
	client := m.client
	bucket := m.cfg.S3.Bucket
	m.mu.RUnlock()

	if client == nil {
		return nil
	}

	before := m.now().UTC().AddDate(0, 0, -retentionDays)
	keys, err := m.backupStore.DeleteOlderThan(before)
	if err != nil {
		return fmt.Errorf("delete old backups: %w", err)
	}

	for _, key := range keys {
		if _, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		}); err != nil {
			m.logger.Warn("delete s3 object failed", "key", key, "error", err)
		}
	}

	return nil
}
