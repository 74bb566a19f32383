package cmd

import (
	"encoding/json"
	"os"

	errors "github.com/Laisky/errors/v2"
	gconfig "github.com/Laisky/go-config/v2"
	gcmd "github.com/Laisky/go-utils/v6/cmd"
	"github.com/Laisky/zap"
	"github.com/spf13/cobra"

	"github.com/Laisky/docstock/internal/reconcile"
	"github.com/Laisky/docstock/library/log"
)

var reconcileCMD = &cobra.Command{
	Use:   "reconcile",
	Short: "reconcile",
	Long: `compare stored blobs with file rows and print the drift as JSON.

Blobs without a row are orphans; rows, active or deleted, without a blob are
reported as missing. With --delete, orphans older than --grace and every blob
queued by a failed cleanup are removed.`,
	Args:   gcmd.NoExtraArgs,
	PreRun: mustInitialize,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runReconcile(cmd); err != nil {
			log.Logger.Panic("run reconcile", zap.Error(err))
		}
	},
}

func runReconcile(cmd *cobra.Command) error {
	ctx := cmd.Context()
	grace, err := cmd.Flags().GetDuration("grace")
	if err != nil {
		return errors.Wrap(err, "read --grace")
	}

	a, err := newApp(ctx)
	if err != nil {
		return errors.Wrap(err, "build app")
	}
	defer a.Close()

	opts := reconcile.Options{
		Files:         a.store,
		Blobs:         a.blobs,
		Prefix:        gconfig.Shared.GetString("prefix"),
		DeleteOrphans: gconfig.Shared.GetBool("delete"),
		GracePeriod:   grace,
		Logger:        log.Logger.Named("reconcile"),
	}
	if a.redis != nil {
		opts.Queue = a.redis
	}

	r, err := reconcile.New(opts)
	if err != nil {
		return errors.Wrap(err, "new reconciler")
	}
	report, err := r.Run(ctx)
	if err != nil {
		return errors.Wrap(err, "reconcile")
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err = encoder.Encode(report); err != nil {
		return errors.Wrap(err, "write report")
	}
	return nil
}

func init() {
	reconcileCMD.Flags().Bool("delete", false, "delete orphan blobs")
	reconcileCMD.Flags().Duration("grace", reconcile.DefaultGracePeriod, "only delete orphans older than this")
	reconcileCMD.Flags().String("prefix", "", "only inspect blob keys with this prefix")
	rootCMD.AddCommand(reconcileCMD)
}

