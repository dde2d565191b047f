package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ewilliams-labs/resonance/internal/adapters/csvimport"
	"github.com/ewilliams-labs/resonance/internal/logging"
)

type importOptions struct {
	userID      string
	batchSize   int
	skipInvalid bool
}

func newImportCmd(a *app) *cobra.Command {
	var opts importOptions
	cmd := &cobra.Command{
		Use:   "import <file.csv|->",
		Short: "Import a listening-history CSV export into the store",
		Long: `Import reads a CSV export with a header row and appends its events and
track features to the store. Events already stored are skipped, so an export
can be imported again safely. Use - to read from stdin.`,
		Example: `  resonance import history.csv --user alice
  cat history.csv | resonance import - --user alice --skip-invalid`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runImport(cmd.Context(), cmd.OutOrStdout(), args[0], opts)
		},
	}
	cmd.Flags().StringVarP(&opts.userID, "user", "u", "", "user the events belong to (required)")
	cmd.Flags().IntVar(&opts.batchSize, "batch-size", csvimport.DefaultBatchSize, "events per ingestion batch")
	cmd.Flags().BoolVar(&opts.skipInvalid, "skip-invalid", false, "log and skip malformed rows instead of failing")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func (a *app) runImport(ctx context.Context, out io.Writer, path string, opts importOptions) error {
	var in io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	store, err := a.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	svc, err := a.newInsights(store, a.spotifyClient())
	if err != nil {
		return err
	}

	loc, err := a.cfg.Analysis.Location()
	if err != nil {
		return err
	}
	reader, err := csvimport.NewReader(in, csvimport.Options{
		BatchSize:   opts.batchSize,
		UserID:      opts.userID,
		Location:    loc,
		SkipInvalid: opts.skipInvalid,
	})
	if err != nil {
		return err
	}

	var inserted, skipped, tracks, batches int
	for {
		batch, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		res, err := svc.Ingest(ctx, opts.userID, batch)
		if err != nil {
			return fmt.Errorf("batch %d: %w", batches+1, err)
		}
		batches++
		inserted += res.EventsInserted
		skipped += res.EventsSkipped
		tracks += res.TracksUpserted
	}

	st := reader.Stats()
	log := logging.WithComponent("import")
	log.Info().
		Str("user_id", opts.userID).
		Int("rows", st.Rows).
		Int("batches", batches).
		Int("inserted", inserted).
		Int("duplicates", skipped).
		Int("invalid", st.Skipped).
		Int("other_users", st.Filtered).
		Msg("import finished")

	fmt.Fprintf(out, "Imported %d events (%d already stored) and %d tracks from %d rows", inserted, skipped, tracks, st.Rows)
	if st.Skipped > 0 || st.Filtered > 0 {
		fmt.Fprintf(out, "; %d invalid, %d for other users", st.Skipped, st.Filtered)
	}
	fmt.Fprintln(out)
	return nil
}
