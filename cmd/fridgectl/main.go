// Command fridgectl edits the shared inventory from a terminal. Every
// command pulls the latest document first (falling back to the local cache
// when the remote is unreachable) and pushes after a change.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dukerupert/fridgetracker/internal/config"
	"github.com/dukerupert/fridgetracker/internal/database"
	"github.com/dukerupert/fridgetracker/internal/inventory"
	"github.com/dukerupert/fridgetracker/internal/logging"
	"github.com/dukerupert/fridgetracker/internal/model"
	"github.com/dukerupert/fridgetracker/internal/server"
	"github.com/dukerupert/fridgetracker/internal/store"
	"github.com/dukerupert/fridgetracker/internal/syncer"
)

type options struct {
	house   string
	storage string
	offline bool
	verbose bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "fridgectl",
		Short:         "Manage the shared fridge and pantry inventory",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.house, "house", string(model.HouseholdSalvo), "household (salvo or elisa)")
	root.PersistentFlags().StringVar(&opts.storage, "storage", string(model.StorageFridge), "storage (fridge or pantry)")
	root.PersistentFlags().BoolVar(&opts.offline, "offline", false, "use the local cache only and do not push")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log sync activity")

	root.AddGroup(
		&cobra.Group{ID: "items", Title: "Inventory:"},
		&cobra.Group{ID: "sync", Title: "Sync:"},
		&cobra.Group{ID: "tools", Title: "Tools:"},
	)
	root.AddCommand(
		newListCmd(opts), newAddCmd(opts), newQuickAddCmd(opts), newUpdateCmd(opts),
		newRmCmd(opts), newStatsCmd(opts), newExpiringCmd(opts),
		newPullCmd(opts), newPushCmd(opts), newExportCmd(opts),
		newExtractCmd(), newLookupCmd(), newVAPIDKeysCmd(),
	)
	return root
}

// session is an opened local cache with the inventory loaded.
type session struct {
	opts   *options
	cfg    *config.Config
	out    io.Writer
	errOut io.Writer
	close  func() error
	inv    *inventory.Store
	engine *syncer.Engine
}

// openSession loads the inventory. With pull set it is fetched from the
// remote, falling back to the cache; otherwise only the cache is read.
func openSession(cmd *cobra.Command, opts *options, pull bool) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	level := "warn"
	if opts.verbose {
		level = "debug"
	}
	logger := logging.New(cmd.ErrOrStderr(), level)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open local cache: %w", err)
	}

	ctx := cmd.Context()
	rs, creds, err := server.OpenRemote(ctx, cfg.Remote, store.NewCredentialStore(db))
	if err != nil {
		db.Close()
		return nil, err
	}
	syncOpts := []syncer.Option{syncer.WithLogger(logger), syncer.WithTimeout(cfg.Remote.Timeout)}
	if creds != nil {
		syncOpts = append(syncOpts, syncer.WithCredentials(creds))
	}

	s := &session{
		opts:   opts,
		cfg:    cfg,
		out:    cmd.OutOrStdout(),
		errOut: cmd.ErrOrStderr(),
		close:  db.Close,
		inv:    inventory.NewStore(),
	}
	s.engine = syncer.New(s.inv, rs, store.NewCacheStore(db), syncOpts...)

	if !pull || opts.offline || cfg.Remote.Kind == config.RemoteNone {
		if err := s.engine.LoadCache(ctx); err != nil {
			db.Close()
			return nil, err
		}
		return s, nil
	}
	if state, err := s.engine.Pull(ctx); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: pull failed (%s), using local cache: %v\n", state, err)
	}
	return s, nil
}

// bucket is the household and storage selected by the persistent flags.
func (s *session) bucket() (model.Bucket, error) {
	return model.ParseBucket(s.opts.house, s.opts.storage)
}

// save writes the local cache and, unless offline, pushes. A failed push is
// reported but not fatal since the change is already stored locally.
func (s *session) save(ctx context.Context) {
	if s.opts.offline || s.cfg.Remote.Kind == config.RemoteNone {
		if err := s.engine.SaveLocal(ctx); err != nil {
			fmt.Fprintf(s.errOut, "warning: %v\n", err)
		}
		return
	}
	state, err := s.engine.Push(ctx)
	if err != nil {
		fmt.Fprintf(s.errOut, "warning: push failed (%s), change kept locally: %v\n", state, err)
	}
}

type sessionFunc func(cmd *cobra.Command, s *session, args []string) error

// withSession opens a session around fn, pulling first, and closes it
// afterwards.
func withSession(opts *options, fn sessionFunc) func(*cobra.Command, []string) error {
	return runSession(opts, true, fn)
}

// withCachedSession is withSession without the pull, for commands that
// upload what this device has.
func withCachedSession(opts *options, fn sessionFunc) func(*cobra.Command, []string) error {
	return runSession(opts, false, fn)
}

func runSession(opts *options, pull bool, fn sessionFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd, opts, pull)
		if err != nil {
			return err
		}
		defer s.close()
		return fn(cmd, s, args)
	}
}
