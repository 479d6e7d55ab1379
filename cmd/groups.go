package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/alDuncanson/dupescope/config"
	"github.com/alDuncanson/dupescope/dataimport"
	"github.com/alDuncanson/dupescope/logging"
	"github.com/alDuncanson/dupescope/projection"
)

var (
	flagGroupsQdrant     bool
	flagGroupsMinSize    int
	flagGroupsMinSamples int
	flagGroupsLimit      int
)

var groupsCmd = &cobra.Command{
	Use:   "groups [dataset.ndjson]",
	Short: "List candidate duplicate groups",
	Long: `Groups clusters the raw embeddings by cosine density (HDBSCAN) and prints
every group of records that sit unusually close together, largest first.
Records that belong to no group are left out.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGroups,
}

func init() {
	groupsCmd.Flags().BoolVar(&flagGroupsQdrant, "qdrant", false, "read records from the configured Qdrant collection")
	groupsCmd.Flags().IntVar(&flagGroupsMinSize, "min-size", 0, "smallest group to report")
	groupsCmd.Flags().IntVar(&flagGroupsMinSamples, "min-samples", 0, "density estimate neighbourhood (0 uses --min-size)")
	groupsCmd.Flags().IntVarP(&flagGroupsLimit, "limit", "n", 0, "print at most this many groups (0 prints all)")
	rootCmd.AddCommand(groupsCmd)
}

func runGroups(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if len(args) == 0 && !flagGroupsQdrant {
		return cmd.Help()
	}

	flags := cmd.Flags()
	if flags.Changed("min-size") {
		cfg.Groups.MinClusterSize = flagGroupsMinSize
	}
	if flags.Changed("min-samples") {
		cfg.Groups.MinSamples = flagGroupsMinSamples
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	var path string
	if len(args) > 0 {
		path = args[0]
	}
	ds, err := loadDataset(ctx, cfg, path, flagGroupsQdrant, logger)
	if err != nil {
		return err
	}

	result, err := clusterRecords(ctx, ds.records, cfg.Groups, logger)
	if err != nil {
		return err
	}
	return printGroups(cmd.OutOrStdout(), ds.records, result, flagGroupsLimit)
}

// clusterRecords proposes duplicate groups over the raw embeddings.
func clusterRecords(ctx context.Context, records []dataimport.Record, cfg config.GroupsConfig, logger *logging.Logger) (projection.ClusterResult, error) {
	clusterCfg := projection.DefaultClusterConfig()
	clusterCfg.MinClusterSize = cfg.MinClusterSize
	clusterCfg.MinSamples = cfg.MinSamples

	result, err := projection.Cluster(ctx, dataimport.Vectors(records), clusterCfg)
	if err != nil {
		return projection.ClusterResult{}, fmt.Errorf("group %d records: %w", len(records), err)
	}
	logger.Debug("Found %d candidate groups", len(result.Groups()))
	return result, nil
}

func printGroups(out io.Writer, records []dataimport.Record, result projection.ClusterResult, limit int) error {
	groups := result.Groups()
	if len(groups) == 0 {
		_, err := fmt.Fprintln(out, "No candidate duplicate groups.")
		return err
	}
	if limit > 0 && len(groups) > limit {
		groups = groups[:limit]
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for i, members := range groups {
		fmt.Fprintf(w, "Group %d (%d records)\n", i+1, len(members))
		for _, idx := range members {
			r := records[idx]
			number := ""
			if r.Number != nil {
				number = fmt.Sprintf("#%d", *r.Number)
			}
			fmt.Fprintf(w, "  %.2f\t%s\t%s\t%s\n", result.Probabilities[idx], number, r.Title, r.URL)
		}
	}
	return w.Flush()
}
