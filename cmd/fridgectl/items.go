package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dukerupert/fridgetracker/internal/datescan"
	"github.com/dukerupert/fridgetracker/internal/expiry"
	"github.com/dukerupert/fridgetracker/internal/inventory"
	"github.com/dukerupert/fridgetracker/internal/model"
)

func printItems(s *session, items []model.Item) {
	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tQTY\tEXPIRY\tSTATUS")
	now := s.inv.Now()
	for _, it := range items {
		a := expiry.Evaluate(it, now)
		qty := strconv.Itoa(it.Quantity)
		if it.Grams != nil {
			qty += fmt.Sprintf(" (%dg)", *it.Grams)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", it.ID, it.Name, qty, it.Expiry, a.Label)
	}
	tw.Flush()
}

// normalizeExpiry turns free text into YYYY-MM-DD or returns it unchanged
// for validation to reject.
func normalizeExpiry(s *session, raw string) string {
	if date, err := datescan.ParseInput(raw, s.inv.Now()); err == nil {
		return date
	}
	return raw
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid item id %q", arg)
	}
	return id, nil
}

func newListCmd(opts *options) *cobra.Command {
	var filter string
	cmd := &cobra.Command{
		Use:     "list",
		GroupID: "items",
		Short:   "List items, soonest expiry first",
		Args:    cobra.NoArgs,
		RunE: withSession(opts, func(cmd *cobra.Command, s *session, args []string) error {
			b, err := s.bucket()
			if err != nil {
				return err
			}
			f, err := expiry.ParseFilter(filter)
			if err != nil {
				return err
			}
			printItems(s, s.inv.List(b, f, s.inv.Now()))
			return nil
		}),
	}
	cmd.Flags().StringVar(&filter, "filter", "all", "all, expiring or expired")
	return cmd
}

func newAddCmd(opts *options) *cobra.Command {
	var quantity, grams int
	cmd := &cobra.Command{
		Use:     "add NAME EXPIRY",
		GroupID: "items",
		Short:   "Add an item",
		Long: `Add an item to the selected household and storage.

EXPIRY may be an ISO date, label text such as "scad. 12/06/25" or
"15 giu 2025", or a relative date such as "in 5 days".`,
		Args: cobra.MinimumNArgs(2),
		RunE: withSession(opts, func(cmd *cobra.Command, s *session, args []string) error {
			b, err := s.bucket()
			if err != nil {
				return err
			}
			in := inventory.NewItem{
				Name:     args[0],
				Expiry:   normalizeExpiry(s, strings.Join(args[1:], " ")),
				Quantity: quantity,
			}
			if cmd.Flags().Changed("grams") {
				in.Grams = &grams
			}
			if err := inventory.Validate(in); err != nil {
				return err
			}
			item, err := s.inv.AddItem(b, in)
			if err != nil {
				return err
			}
			s.save(cmd.Context())
			fmt.Fprintf(s.out, "Added %s (#%d) to %s, expires %s\n", item.Name, item.ID, b, item.Expiry)
			return nil
		}),
	}
	cmd.Flags().IntVarP(&quantity, "quantity", "q", 1, "number of units")
	cmd.Flags().IntVar(&grams, "grams", 0, "weight in grams")
	return cmd
}

func newQuickAddCmd(opts *options) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:     "quick-add NAME",
		GroupID: "items",
		Short:   "Add a preset item, or any item with --days",
		Args:    cobra.ExactArgs(1),
		RunE: withSession(opts, func(cmd *cobra.Command, s *session, args []string) error {
			b, err := s.bucket()
			if err != nil {
				return err
			}
			p, ok := inventory.FindPreset(args[0])
			if cmd.Flags().Changed("days") {
				if days < 0 {
					return errors.New("--days must not be negative")
				}
				p = inventory.Preset{Name: args[0], Days: days}
			} else if !ok {
				return fmt.Errorf("no preset named %q; pass --days", args[0])
			}
			item, err := s.inv.QuickAdd(b, p)
			if err != nil {
				return err
			}
			s.save(cmd.Context())
			fmt.Fprintf(s.out, "Added %s (#%d), expires %s\n", item.Name, item.ID, item.Expiry)
			return nil
		}),
	}
	cmd.Flags().IntVar(&days, "days", 0, "shelf life in days")
	return cmd
}

func newUpdateCmd(opts *options) *cobra.Command {
	var (
		name, expiryText string
		quantity, grams  int
		clearGrams       bool
	)
	cmd := &cobra.Command{
		Use:     "update ID",
		GroupID: "items",
		Short:   "Change an item's fields",
		Args:    cobra.ExactArgs(1),
		RunE: withSession(opts, func(cmd *cobra.Command, s *session, args []string) error {
			b, err := s.bucket()
			if err != nil {
				return err
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			var p inventory.Patch
			flags := cmd.Flags()
			if flags.Changed("name") {
				p.Name = &name
			}
			if flags.Changed("expiry") {
				e := normalizeExpiry(s, expiryText)
				p.Expiry = &e
			}
			if flags.Changed("quantity") {
				p.Quantity = &quantity
			}
			if flags.Changed("grams") {
				p.Grams = &grams
			}
			p.ClearGrams = clearGrams
			if err := inventory.ValidatePatch(p); err != nil {
				return err
			}

			item, err := s.inv.UpdateItem(b, id, p)
			if err != nil {
				return err
			}
			s.save(cmd.Context())
			printItems(s, []model.Item{item})
			return nil
		}),
	}
	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&expiryText, "expiry", "", "new expiry date")
	cmd.Flags().IntVarP(&quantity, "quantity", "q", 1, "new quantity")
	cmd.Flags().IntVar(&grams, "grams", 0, "new weight in grams")
	cmd.Flags().BoolVar(&clearGrams, "clear-grams", false, "remove the weight")
	return cmd
}

func newRmCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "rm ID...",
		GroupID: "items",
		Short:   "Remove items",
		Args:    cobra.MinimumNArgs(1),
		RunE: withSession(opts, func(cmd *cobra.Command, s *session, args []string) error {
			b, err := s.bucket()
			if err != nil {
				return err
			}
			removed := 0
			var errs []error
			for _, arg := range args {
				id, err := parseID(arg)
				if err != nil {
					errs = append(errs, err)
					continue
				}
				if !s.inv.DeleteItem(b, id) {
					errs = append(errs, fmt.Errorf("item %d: %w", id, inventory.ErrNotFound))
					continue
				}
				removed++
			}
			if removed > 0 {
				s.save(cmd.Context())
			}
			fmt.Fprintf(s.out, "Removed %d item(s)\n", removed)
			return errors.Join(errs...)
		}),
	}
}

func newStatsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "stats",
		GroupID: "items",
		Short:   "Count items by freshness",
		Args:    cobra.NoArgs,
		RunE: withSession(opts, func(cmd *cobra.Command, s *session, args []string) error {
			b, err := s.bucket()
			if err != nil {
				return err
			}
			st := s.inv.Stats(b, s.inv.Now())
			fmt.Fprintf(s.out, "%s: %d total, %d expiring, %d expired\n", b, st.Total, st.Expiring, st.Expired)
			return nil
		}),
	}
}

func newExpiringCmd(opts *options) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:     "expiring",
		GroupID: "items",
		Short:   "Show items expiring soon in every household",
		Args:    cobra.NoArgs,
		RunE: withSession(opts, func(cmd *cobra.Command, s *session, args []string) error {
			if days < 0 {
				return errors.New("--days must not be negative")
			}
			due := s.inv.Expiring(s.inv.Now(), days)
			tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "HOUSEHOLD\tSTORAGE\tID\tNAME\tDAYS")
			for _, h := range model.Households {
				for _, r := range due[h] {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%d\n", h, r.Storage, r.ID, r.Name, r.DaysLeft)
				}
			}
			return tw.Flush()
		}),
	}
	cmd.Flags().IntVar(&days, "days", expiry.ExpiringWindow, "look-ahead window in days")
	return cmd
}
