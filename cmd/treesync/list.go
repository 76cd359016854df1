package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newListCmd(a *app) *cobra.Command {
	var long bool

	cmd := &cobra.Command{
		Use:     "list PATH",
		Aliases: []string{"ls"},
		Short:   "List every file beneath PATH",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, tl, err := a.resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			snap, err := a.client().List(cmd.Context(), tl)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, e := range snap.Entries() {
				name := loc.String()
				if e.RelativePath != "" {
					name = loc.Child(e.RelativePath).String()
				}
				if !long {
					fmt.Fprintln(out, name)
					continue
				}
				fmt.Fprintf(out, "%10s  %-25s  %s\n", humanize.IBytes(e.Size), formatTime(e.ModTime), name)
			}
			if long {
				fmt.Fprintf(out, "%d entries, %s\n", snap.Len(), humanize.IBytes(snap.TotalSize()))
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&long, "long", "l", false, "show size and modification time")
	return cmd
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
