package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/dukerupert/fridgetracker/internal/config"
	"github.com/dukerupert/fridgetracker/internal/database"
	"github.com/dukerupert/fridgetracker/internal/docstore"
	"github.com/dukerupert/fridgetracker/internal/store"
)

func setupCLI(t *testing.T) {
	t.Helper()
	t.Setenv("FRIDGE_DB_PATH", filepath.Join(t.TempDir(), "fridge.db"))
	t.Setenv("FRIDGE_REMOTE", "none")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

var addedID = regexp.MustCompile(`#(\d+)`)

func TestAddListRemove(t *testing.T) {
	setupCLI(t)

	out, err := run(t, "add", "Latte", "2030-06-12", "--house", "elisa", "-q", "2")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	m := addedID.FindStringSubmatch(out)
	if m == nil {
		t.Fatalf("add output %q has no id", out)
	}

	out, err = run(t, "list", "--house", "elisa")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "Latte") || !strings.Contains(out, "2030-06-12") {
		t.Errorf("list output = %q, want Latte", out)
	}

	out, _ = run(t, "list", "--house", "salvo")
	if strings.Contains(out, "Latte") {
		t.Errorf("salvo list should not contain elisa's item: %q", out)
	}

	if _, err := run(t, "rm", m[1], "--house", "elisa"); err != nil {
		t.Fatalf("rm: %v", err)
	}
	out, _ = run(t, "list", "--house", "elisa")
	if strings.Contains(out, "Latte") {
		t.Errorf("item still listed after rm: %q", out)
	}
}

func TestAddRejectsBadInput(t *testing.T) {
	setupCLI(t)

	if _, err := run(t, "add", "Latte", "xyz"); err == nil {
		t.Error("expected error for unparseable expiry")
	}
	if _, err := run(t, "add", "Latte", "2030-06-12", "--house", "bob"); err == nil {
		t.Error("expected error for unknown household")
	}
	if _, err := run(t, "rm", "12345"); err == nil {
		t.Error("expected error removing a missing item")
	}
}

func TestQuickAddAndStats(t *testing.T) {
	setupCLI(t)

	if _, err := run(t, "quick-add", "mozzarella"); err != nil {
		t.Fatalf("quick-add preset: %v", err)
	}
	if _, err := run(t, "quick-add", "Ricotta", "--days", "0"); err != nil {
		t.Fatalf("quick-add custom: %v", err)
	}
	if _, err := run(t, "quick-add", "Caviale"); err == nil {
		t.Error("expected error for unknown preset without --days")
	}

	out, err := run(t, "stats")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if !strings.Contains(out, "2 total, 1 expiring, 0 expired") {
		t.Errorf("stats output = %q", out)
	}
}

func TestExtract(t *testing.T) {
	out, err := run(t, "extract", "da consumarsi entro il 12/06/2025")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if strings.TrimSpace(out) != "2025-06-12" {
		t.Errorf("extract = %q, want 2025-06-12", out)
	}

	if _, err := run(t, "extract", "nothing here"); err == nil {
		t.Error("expected error when no date is present")
	}
}

func TestVAPIDKeys(t *testing.T) {
	out, err := run(t, "vapid-keys")
	if err != nil {
		t.Fatalf("vapid-keys: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("output = %q, want two lines", out)
	}
	if !strings.HasPrefix(lines[0], "FRIDGE_VAPID_PUBLIC_KEY=") || !strings.HasPrefix(lines[1], "FRIDGE_VAPID_PRIVATE_KEY=") {
		t.Errorf("output = %q", out)
	}
}

// setupRemote points the CLI at a fresh document server and returns its URL.
func setupRemote(t *testing.T) string {
	t.Helper()
	setupCLI(t)

	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open remote db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	ds := docstore.New(store.NewDocumentStore(db), config.DocstoreConfig{Name: "fridge"}, slog.Default())
	if err := ds.Seed(context.Background()); err != nil {
		t.Fatalf("seed remote: %v", err)
	}
	srv := httptest.NewServer(ds.Router())
	t.Cleanup(srv.Close)

	url := srv.URL + "/fridge"
	t.Setenv("FRIDGE_REMOTE", "http")
	t.Setenv("FRIDGE_REMOTE_URL", url)
	return url
}

func remoteBody(t *testing.T, url string) string {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get remote: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read remote: %v", err)
	}
	return string(body)
}

func TestPushUploadsOfflineEdits(t *testing.T) {
	url := setupRemote(t)

	if _, err := run(t, "--offline", "add", "Stracchino", "2030-01-01"); err != nil {
		t.Fatalf("offline add: %v", err)
	}
	if strings.Contains(remoteBody(t, url), "Stracchino") {
		t.Fatal("offline add reached the remote")
	}

	out, err := run(t, "push")
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if !strings.HasPrefix(out, "synced: 1 items") {
		t.Errorf("push output = %q, want synced: 1 items", out)
	}
	if !strings.Contains(remoteBody(t, url), "Stracchino") {
		t.Errorf("remote after push = %s, want Stracchino", remoteBody(t, url))
	}

	out, err = run(t, "--offline", "list")
	if err != nil {
		t.Fatalf("offline list: %v", err)
	}
	if !strings.Contains(out, "Stracchino") {
		t.Errorf("local cache after push = %q, want Stracchino", out)
	}
}

func TestOnlineEditsSyncThroughRemote(t *testing.T) {
	url := setupRemote(t)

	if _, err := run(t, "add", "Burrata", "2030-02-01", "--house", "elisa"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if !strings.Contains(remoteBody(t, url), "Burrata") {
		t.Errorf("remote after add = %s, want Burrata", remoteBody(t, url))
	}

	// A second device starts from an empty cache and sees the item after a pull.
	t.Setenv("FRIDGE_DB_PATH", filepath.Join(t.TempDir(), "other.db"))
	out, err := run(t, "pull")
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if !strings.HasPrefix(out, "synced: 1 items") {
		t.Errorf("pull output = %q, want synced: 1 items", out)
	}
	out, _ = run(t, "--offline", "list", "--house", "elisa")
	if !strings.Contains(out, "Burrata") {
		t.Errorf("pulled cache = %q, want Burrata", out)
	}
}

func TestPushNeedsRemote(t *testing.T) {
	setupCLI(t)
	if _, err := run(t, "push"); err == nil {
		t.Error("expected error pushing without a remote")
	}
}
