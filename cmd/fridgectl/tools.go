package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dukerupert/fridgetracker/internal/config"
	"github.com/dukerupert/fridgetracker/internal/datescan"
	"github.com/dukerupert/fridgetracker/internal/lookup"
	"github.com/dukerupert/fridgetracker/internal/push"
)

func newExtractCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "extract TEXT...",
		GroupID: "tools",
		Short:   "Find an expiry date in label text",
		Example: `  fridgectl extract "da consumarsi entro il 12/06/2025"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, ok := datescan.Extract(strings.Join(args, " "))
			if !ok {
				return fmt.Errorf("no expiry date found")
			}
			fmt.Fprintln(cmd.OutOrStdout(), date)
			return nil
		},
	}
}

func newLookupCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "lookup BARCODE",
		GroupID: "tools",
		Short:   "Look a product up by barcode",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			p, found, err := lookup.NewClient(cfg.Lookup).Lookup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !found {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[0], lookup.UnknownName)
				return nil
			}
			if p.Brand != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (%s)\n", p.Code, p.Name, p.Brand)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", p.Code, p.Name)
			return nil
		},
	}
}

func newVAPIDKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "vapid-keys",
		GroupID: "tools",
		Short:   "Generate a key pair for expiry reminders",
		Long:    "Generate a VAPID key pair and print it as environment variables for the server.",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pub, priv, err := push.GenerateVAPIDKeys()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "FRIDGE_VAPID_PUBLIC_KEY=%s\nFRIDGE_VAPID_PRIVATE_KEY=%s\n", pub, priv)
			return nil
		},
	}
}
