package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/kevinye7/PokeHub/internal/feed"
	"github.com/kevinye7/PokeHub/internal/models"

	"github.com/spf13/cobra"
)

// ValidFormats defines the allowed output formats of the feed command.
var ValidFormats = []string{"text", "json", "yaml"}

type FeedOptions struct {
	Sort   string
	Filter string
	Format string
}

func NewFeedCommand(root *RootOptions) *cobra.Command {
	opts := &FeedOptions{}

	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Load the feed once and print it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			sort, err := models.ParseSortKey(opts.Sort)
			if err != nil {
				return err
			}

			cfg, logger, err := root.setup()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			e, backend, err := newEngine(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer backend.Close(cmd.Context()) //nolint:errcheck
			defer e.Close()

			snap, err := e.LoadFeed(cmd.Context(), models.PostQuery{Sort: sort, Filter: opts.Filter})
			if err != nil {
				return err
			}
			return printFeed(cmd.OutOrStdout(), opts.Format, snap)
		},
	}

	cmd.Flags().StringVar(&opts.Sort, "sort", string(models.SortNewest), "sort order (newest|likes|likes_desc)")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "case-insensitive title filter")
	cmd.Flags().StringVar(&opts.Format, "format", "text", "output format (text|json|yaml)")
	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func printFeed(w io.Writer, format string, snap *feed.Snapshot) error {
	switch format {
	case "json":
		return writeJSON(w, snap)
	case "yaml":
		return writeYAML(w, snap)
	}

	if len(snap.Posts) == 0 {
		_, err := fmt.Fprintln(w, "No posts.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tLIKES\tCOMMENTS\tCREATED")
	for _, p := range snap.Posts {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", p.ID, p.Title, p.Likes, p.CommentCount, p.CreatedAt.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}
