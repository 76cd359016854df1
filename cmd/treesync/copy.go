package main

import (
	"github.com/spf13/cobra"

	"github.com/input-output-hk/catalyst-forge-libs/treesync"
)

func newCopyCmd(a *app) *cobra.Command {
	var recursive bool

	cmd := &cobra.Command{
		Use:   "copy SRC DST",
		Short: "Copy a file, or a directory with -r, without deleting anything",
		Long: `Copy SRC to DST. Either side is a local path or s3://bucket/prefix.

Without -r SRC must name a single file. A DST ending in "/" receives the
file under its own name.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			src, srcLoc, err := a.resolve(ctx, args[0])
			if err != nil {
				return err
			}
			dst, err := a.parse(args[1])
			if err != nil {
				return err
			}
			if dst.Dir && !recursive {
				dst = dst.Child(src.Base())
			}
			dstLoc, err := a.locate(ctx, dst)
			if err != nil {
				return err
			}

			report, err := a.client().Copy(ctx, srcLoc, dstLoc, recursive,
				treesync.WithProgress(logProgress{a.logger}))
			printReport(cmd.OutOrStdout(), report)
			return err
		},
	}

	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "copy every entry beneath SRC")
	return cmd
}
