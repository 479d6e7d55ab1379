package cmd

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/alDuncanson/dupescope/dataimport"
	"github.com/alDuncanson/dupescope/projection"
	"github.com/alDuncanson/dupescope/qdrant"
)

var (
	flagPushAddress    string
	flagPushCollection string
)

var pushCmd = &cobra.Command{
	Use:   "push <dataset.ndjson>",
	Short: "Upsert a dataset into a Qdrant collection",
	Long: `Push stores every record of an NDJSON dataset in Qdrant so that project and
view can later read it with --qdrant. Points are keyed by record URL, so
pushing again updates them in place.`,
	Args: cobra.ExactArgs(1),
	RunE: runPush,
}

func init() {
	pushCmd.Flags().StringVar(&flagPushAddress, "address", "", "Qdrant gRPC address (overrides config)")
	pushCmd.Flags().StringVar(&flagPushCollection, "collection", "", "Qdrant collection (overrides config)")
	rootCmd.AddCommand(pushCmd)
}

func runPush(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if flagPushAddress != "" {
		cfg.Qdrant.Address = flagPushAddress
	}
	if flagPushCollection != "" {
		cfg.Qdrant.Collection = flagPushCollection
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	ds, err := loadDataset(ctx, cfg, args[0], false, logger)
	if err != nil {
		return err
	}
	vectors := dataimport.Vectors(ds.records)
	if err := projection.CheckDimensions(vectors); err != nil {
		return err
	}

	client, err := qdrant.NewClient(cfg.Qdrant.Address, cfg.Qdrant.Collection)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.EnsureCollection(ctx, uint64(len(vectors[0]))); err != nil {
		return err
	}
	n, err := client.Upsert(ctx, ds.records)
	if err != nil {
		return err
	}

	logger.Info("Pushed %d records to %s/%s", n, cfg.Qdrant.Address, cfg.Qdrant.Collection)
	return nil
}
