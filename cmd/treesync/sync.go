package main

import (
	"context"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/input-output-hk/catalyst-forge-libs/treesync"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/internal/watch"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/synctypes"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/tree/localtree"
)

type syncFlags struct {
	deleteExtra bool
	dryRun      bool
	sizeOnly    bool
	include     []string
	exclude     []string
	watch       bool
	debounce    time.Duration
}

func newSyncCmd(a *app) *cobra.Command {
	var f syncFlags

	cmd := &cobra.Command{
		Use:   "sync SRC DST",
		Short: "Make DST mirror SRC",
		Long: `Transfer every new or modified entry beneath SRC to DST. With --delete,
entries beneath DST that are absent from SRC are removed. SRC and DST must
not both be local.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			src, srcLoc, err := a.resolve(ctx, args[0])
			if err != nil {
				return err
			}
			_, dstLoc, err := a.resolve(ctx, args[1])
			if err != nil {
				return err
			}

			client := a.client()
			opts := []synctypes.SyncOption{
				treesync.WithDelete(f.deleteExtra),
				treesync.WithDryRun(f.dryRun),
				treesync.WithSizeOnly(f.sizeOnly),
				treesync.WithInclude(f.include...),
				treesync.WithExclude(f.exclude...),
				treesync.WithProgress(logProgress{a.logger}),
			}
			once := func(ctx context.Context) error {
				report, err := client.Sync(ctx, srcLoc, dstLoc, opts...)
				printReport(cmd.OutOrStdout(), report)
				return err
			}

			if !f.watch {
				return once(ctx)
			}
			if src.Remote() {
				return errors.NewUnsupportedError("sync", "--watch requires a local source").WithPath(args[0])
			}

			a.logger.Info("watching for changes", "source", src.String(), "debounce", f.debounce)
			w := watch.New(filepath.FromSlash(src.Root),
				watch.WithDebounce(f.debounce),
				watch.WithIgnore(localtree.IsTemp),
				watch.WithLogger(a.logger))
			if err := w.Run(ctx, once); err != nil {
				return err
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return errors.NewCancelledError("watch", ctxErr)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.BoolVarP(&f.deleteExtra, "delete", "D", false, "delete DST entries absent from SRC")
	flags.BoolVarP(&f.dryRun, "dry-run", "n", false, "print the plan without applying it")
	flags.BoolVar(&f.sizeOnly, "size-only", false, "compare sizes only, ignoring modification times")
	flags.StringArrayVar(&f.include, "include", nil, "only sync paths matching this glob (repeatable)")
	flags.StringArrayVar(&f.exclude, "exclude", nil, "skip paths matching this glob (repeatable)")
	flags.BoolVarP(&f.watch, "watch", "w", false, "re-run whenever the local SRC changes")
	flags.DurationVar(&f.debounce, "debounce", watch.DefaultDebounce, "quiet period before a watched re-run")
	return cmd
}
