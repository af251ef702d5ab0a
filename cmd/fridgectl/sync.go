package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dukerupert/fridgetracker/internal/config"
)

func newPullCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "pull",
		GroupID: "sync",
		Short:   "Fetch the shared inventory into the local cache",
		Args:    cobra.NoArgs,
		RunE: withSession(opts, func(cmd *cobra.Command, s *session, args []string) error {
			st := s.engine.Status()
			fmt.Fprintf(s.out, "%s: %d items", st.State, s.inv.Len())
			if st.Version != "" {
				fmt.Fprintf(s.out, " at version %s", st.Version)
			}
			fmt.Fprintln(s.out)
			return nil
		}),
	}
}

func newPushCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "push",
		GroupID: "sync",
		Short:   "Upload the local inventory to the shared document",
		Long:    "Upload the inventory in the local cache, including changes made with --offline, replacing the shared document.",
		Args:    cobra.NoArgs,
		RunE: withCachedSession(opts, func(cmd *cobra.Command, s *session, args []string) error {
			if s.opts.offline || s.cfg.Remote.Kind == config.RemoteNone {
				return fmt.Errorf("no remote to push to")
			}
			state, err := s.engine.Push(cmd.Context())
			if err != nil {
				return fmt.Errorf("push (%s): %w", state, err)
			}
			fmt.Fprintf(s.out, "%s: %d items\n", state, s.inv.Len())
			return nil
		}),
	}
}

func newExportCmd(opts *options) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:     "export",
		GroupID: "sync",
		Short:   "Write the inventory document as JSON",
		Args:    cobra.NoArgs,
		RunE: withSession(opts, func(cmd *cobra.Command, s *session, args []string) error {
			data, err := s.inv.Export()
			if err != nil {
				return err
			}
			if out == "" || out == "-" {
				_, err := s.out.Write(append(data, '\n'))
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Fprintf(s.errOut, "Exported %d items to %s\n", s.inv.Len(), out)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "file to write (default stdout)")
	return cmd
}
