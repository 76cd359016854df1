package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/input-output-hk/catalyst-forge-libs/treesync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/fs"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/internal/config"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	cmd.AddCommand(newConfigInitCmd(), newConfigShowCmd(a))
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var (
		force    bool
		provider string
	)

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a configuration file with default settings",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("config")
			if path == "" {
				path = config.DefaultPath()
			}
			exists, err := fs.Exists(path)
			if err != nil {
				return errors.NewIOError("config init", err).WithPath(path)
			}
			if exists && !force {
				return errors.NewConfigError("config init", "file already exists, use --force to overwrite").WithPath(path)
			}

			cfg := config.Default()
			cfg.Storage.Provider = provider
			for name, field := range map[string]*string{
				"bucket":   &cfg.Storage.Bucket,
				"endpoint": &cfg.Storage.Endpoint,
				"region":   &cfg.Storage.Region,
			} {
				if cmd.Flags().Changed(name) {
					*field, _ = cmd.Flags().GetString(name)
				}
			}
			if cfg.Storage.Endpoint != "" && cfg.Storage.Provider == config.ProviderS3 {
				cfg.Storage.ForcePathStyle = true
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := cfg.Save(path); err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), "wrote", path)
			return err
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	cmd.Flags().StringVar(&provider, "provider", config.ProviderS3, "object store provider (s3 or minio)")
	return cmd
}

func newConfigShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := a.cfg.Redacted().Marshal()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if a.cfg.Path != "" {
				fmt.Fprintf(out, "# %s\n", a.cfg.Path)
			}
			_, err = out.Write(data)
			return err
		},
	}
}
