// Package config reads the FRIDGE_* environment, optionally seeded from a
// .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dukerupert/fridgetracker/internal/backup"
	"github.com/dukerupert/fridgetracker/internal/lookup"
	"github.com/dukerupert/fridgetracker/internal/push"
	"github.com/dukerupert/fridgetracker/internal/remote"
	"github.com/joho/godotenv"
)

const prefix = "FRIDGE_"

// Remote kinds.
const (
	RemoteNone   = "none"
	RemoteHTTP   = "http"
	RemoteGitHub = "github"
	RemoteS3     = "s3"
)

// GitHubCredential is the credential store name of the GitHub token.
const GitHubCredential = "github"

var ErrUnknownRemote = errors.New("unknown remote kind")

// RemoteConfig selects and configures the sync target.
type RemoteConfig struct {
	Kind    string
	Timeout time.Duration

	URL   string
	Token string

	GitHub      remote.GitHubConfig
	GitHubToken string

	S3 remote.S3Config
}

// DocstoreConfig configures cmd/docstore.
type DocstoreConfig struct {
	Port        string
	DBPath      string
	Name        string
	Token       string
	AllowOrigin string
}

type Config struct {
	Port     string
	DBPath   string
	LogLevel string
	LogFile  string
	APIToken string
	// CORS origin of the app API
	AllowOrigin string

	Remote   RemoteConfig
	Push     push.Config
	Backup   backup.Config
	Lookup   lookup.Config
	Docstore DocstoreConfig
}

// Load reads the configuration. A .env file in the working directory is
// loaded first if present; real environment variables win over it.
func Load() (*Config, error) {
	return LoadFiles(".env")
}

// LoadFiles is Load with explicit .env paths. Missing files are ignored.
func LoadFiles(files ...string) (*Config, error) {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var errs []error
	intEnv := func(key string, def int) int {
		v, err := getInt(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		DBPath:      getEnv("DB_PATH", "fridgetracker.db"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFile:     getEnv("LOG_FILE", ""),
		APIToken:    getEnv("API_TOKEN", ""),
		AllowOrigin: getEnv("ALLOW_ORIGIN", "*"),
		Remote: RemoteConfig{
			Kind:  strings.ToLower(getEnv("REMOTE", RemoteNone)),
			URL:   getEnv("REMOTE_URL", "http://localhost:8081/fridge"),
			Token: getEnv("REMOTE_TOKEN", ""),
			GitHub: remote.GitHubConfig{
				APIURL: getEnv("GITHUB_API_URL", ""),
				Owner:  getEnv("GITHUB_OWNER", ""),
				Repo:   getEnv("GITHUB_REPO", ""),
				Path:   getEnv("GITHUB_PATH", "fridge_data.json"),
				Branch: getEnv("GITHUB_BRANCH", "main"),
			},
			GitHubToken: getEnv("GITHUB_TOKEN", ""),
			S3: remote.S3Config{
				Endpoint:  getEnv("S3_ENDPOINT", ""),
				Bucket:    getEnv("S3_BUCKET", ""),
				Region:    getEnv("S3_REGION", "us-east-1"),
				AccessKey: getEnv("S3_ACCESS_KEY", ""),
				SecretKey: getEnv("S3_SECRET_KEY", ""),
				Key:       getEnv("S3_KEY", "fridge_data.json"),
			},
		},
		Push: push.Config{
			VAPIDPublicKey:  getEnv("VAPID_PUBLIC_KEY", ""),
			VAPIDPrivateKey: getEnv("VAPID_PRIVATE_KEY", ""),
			Subscriber:      getEnv("VAPID_SUBSCRIBER", ""),
			ReminderHour:    intEnv("REMINDER_HOUR", 8),
		},
		Backup: backup.Config{
			S3: backup.S3Config{
				Endpoint:  getEnv("BACKUP_S3_ENDPOINT", ""),
				Bucket:    getEnv("BACKUP_S3_BUCKET", ""),
				Region:    getEnv("BACKUP_S3_REGION", "us-east-1"),
				AccessKey: getEnv("BACKUP_S3_ACCESS_KEY", ""),
				SecretKey: getEnv("BACKUP_S3_SECRET_KEY", ""),
			},
			Prefix:        getEnv("BACKUP_PREFIX", backup.DefaultPrefix),
			Passphrase:    getEnv("BACKUP_PASSPHRASE", ""),
			ScheduleHour:  intEnv("BACKUP_HOUR", 3),
			RetentionDays: intEnv("BACKUP_RETENTION_DAYS", backup.DefaultRetentionDays),
		},
		Lookup: lookup.Config{
			BaseURL:  getEnv("LOOKUP_URL", ""),
			Language: getEnv("LOOKUP_LANGUAGE", "it"),
		},
		Docstore: DocstoreConfig{
			Port:        getEnv("DOCSTORE_PORT", "8081"),
			DBPath:      getEnv("DOCSTORE_DB_PATH", "docstore.db"),
			Name:        getEnv("DOCSTORE_NAME", "fridge"),
			Token:       getEnv("DOCSTORE_TOKEN", ""),
			AllowOrigin: getEnv("DOCSTORE_ALLOW_ORIGIN", "*"),
		},
	}

	timeout, err := getDuration("REMOTE_TIMEOUT", remote.DefaultTimeout)
	if err != nil {
		errs = append(errs, err)
	}
	cfg.Remote.Timeout = timeout

	if err := cfg.validate(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if _, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Errorf("%sPORT: %q is not a port number", prefix, c.Port))
	}
	if c.Push.ReminderHour < 0 || c.Push.ReminderHour > 23 {
		errs = append(errs, fmt.Errorf("%sREMINDER_HOUR: %d is not an hour of day", prefix, c.Push.ReminderHour))
	}
	if c.Backup.ScheduleHour > 23 {
		errs = append(errs, fmt.Errorf("%sBACKUP_HOUR: %d is not an hour of day", prefix, c.Backup.ScheduleHour))
	}

	switch c.Remote.Kind {
	case RemoteNone:
	case RemoteHTTP:
		if c.Remote.URL == "" {
			errs = append(errs, fmt.Errorf("%sREMOTE_URL is required for the http remote", prefix))
		}
	case RemoteGitHub:
		if c.Remote.GitHub.Owner == "" || c.Remote.GitHub.Repo == "" {
			errs = append(errs, fmt.Errorf("%sGITHUB_OWNER and %sGITHUB_REPO are required for the github remote", prefix, prefix))
		}
	case RemoteS3:
		if c.Remote.S3.Bucket == "" {
			errs = append(errs, fmt.Errorf("%sS3_BUCKET is required for the s3 remote", prefix))
		}
	default:
		errs = append(errs, fmt.Errorf("%sREMOTE: %w %q", prefix, ErrUnknownRemote, c.Remote.Kind))
	}
	return errors.Join(errs...)
}

// Store builds the configured remote. creds supplies the GitHub token.
func (c RemoteConfig) Store(creds remote.CredentialSource) (remote.Store, error) {
	switch c.Kind {
	case RemoteNone, "":
		return remote.Nop{}, nil
	case RemoteHTTP:
		opts := []remote.HTTPOption{}
		if c.Token != "" {
			opts = append(opts, remote.WithBearerToken(c.Token))
		}
		return remote.NewHTTPStore(c.URL, opts...), nil
	case RemoteGitHub:
		return remote.NewGitHubStore(c.GitHub, creds), nil
	case RemoteS3:
		return remote.NewS3Store(c.S3), nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownRemote, c.Kind)
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(prefix + key); exists {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	raw, exists := os.LookupEnv(prefix + key)
	if !exists || strings.TrimSpace(raw) == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return defaultValue, fmt.Errorf("%s%s: %q is not an integer", prefix, key, raw)
	}
	return v, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw, exists := os.LookupEnv(prefix + key)
	if !exists || strings.TrimSpace(raw) == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return defaultValue, fmt.Errorf("%s%s: %w", prefix, key, err)
	}
	return d, nil
}
