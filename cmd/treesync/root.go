package main

import (
	"github.com/spf13/cobra"

	"github.com/input-output-hk/catalyst-forge-libs/treesync/internal/config"
)

// skipConfig marks commands that run without loading the configuration.
const skipConfig = "skip-config"

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "treesync",
		Short:         "Copy and synchronize directory trees with object storage",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[skipConfig] != "" {
				a.applyVerbose(cmd)
				return nil
			}
			return a.loadConfig(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.SortFlags = false
	flags.StringP("config", "c", "", "config file (default "+config.DefaultPath()+")")
	flags.BoolP("verbose", "v", false, "enable debug logging")
	flags.String("bucket", "", "bucket for s3:// locations that do not name one")
	flags.String("endpoint", "", "object store endpoint")
	flags.String("region", "", "object store region")
	flags.IntP("concurrency", "j", 0, "number of actions run in parallel")

	for key, name := range map[string]string{
		"storage.bucket":       "bucket",
		"storage.endpoint":     "endpoint",
		"storage.region":       "region",
		"transfer.concurrency": "concurrency",
	} {
		_ = a.v.BindPFlag(key, flags.Lookup(name))
	}

	cmd.AddCommand(
		newCopyCmd(a),
		newSyncCmd(a),
		newListCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)
	return cmd
}
