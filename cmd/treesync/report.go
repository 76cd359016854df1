package main

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/input-output-hk/catalyst-forge-libs/treesync/synctypes"
)

var (
	green = color.New(color.FgHiGreen).SprintFunc()
	red   = color.New(color.FgHiRed).SprintFunc()
)

func printReport(w io.Writer, report *synctypes.Report) {
	if report == nil {
		return
	}

	if report.DryRun {
		var transfers, deletes int
		var bytes uint64
		for _, act := range report.Planned {
			kind := fmt.Sprintf("%-8s", act.Kind)
			if act.Kind == synctypes.ActionDelete {
				deletes++
				kind = red(kind)
			} else {
				transfers++
				bytes += act.Size
				kind = green(kind)
			}
			fmt.Fprintf(w, "%s %s (%s)\n", kind, act.DestPath, act.Reason)
		}
		fmt.Fprintf(w, "dry run: %d to transfer (%s), %d to delete, %d up to date\n",
			transfers, humanize.IBytes(bytes), deletes, report.Skipped)
		return
	}

	fmt.Fprintf(w, "transferred %d (%s), deleted %d, skipped %d in %s\n",
		report.Transferred,
		humanize.IBytes(uint64(report.BytesTransferred)),
		report.Deleted,
		report.Skipped,
		report.Duration.Round(time.Millisecond))
}
