package syncer

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"

	"github.com/mcpherson-lab/pubsync/internal/domain"
)

// WriteReport renders the run summary as a table. Verbose adds the
// recorded per-member failure reasons below the table.
func WriteReport(w io.Writer, run *domain.SyncRun, verbose bool) {
	mode := "sync"
	if run.DryRun {
		mode = "dry run"
	}
	fmt.Fprintf(w, "\nRun %s (%s): %d member(s), finished %s\n\n",
		run.ID, mode, len(run.Members), run.FinishedAt.Format("2006-01-02 15:04:05"))

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Member", "Considered", "Created", "Existing", "Cap", "Invalid", "Fetch Err", "Write Err"})
	for _, m := range run.Members {
		if m.Inactive {
			table.Append([]string{m.Username, "inactive", "-", "-", "-", "-", "-", "-"})
			continue
		}
		table.Append([]string{
			m.Username,
			fmt.Sprintf("%d", m.Considered),
			fmt.Sprintf("%d", m.Created),
			fmt.Sprintf("%d", m.SkippedExisting),
			fmt.Sprintf("%d", m.SkippedCap),
			fmt.Sprintf("%d", m.SkippedInvalid),
			fmt.Sprintf("%d", m.FetchFailed),
			fmt.Sprintf("%d", m.WriteFailed),
		})
	}
	t := run.Totals
	table.SetFooter([]string{
		"TOTAL",
		fmt.Sprintf("%d", t.Considered),
		fmt.Sprintf("%d", t.Created),
		fmt.Sprintf("%d", t.SkippedExisting),
		fmt.Sprintf("%d", t.SkippedCap),
		fmt.Sprintf("%d", t.SkippedInvalid),
		fmt.Sprintf("%d", t.FetchFailed),
		fmt.Sprintf("%d", t.WriteFailed),
	})
	table.Render()

	if verbose {
		for _, m := range run.Members {
			for _, e := range m.Errors {
				fmt.Fprintf(w, "  %s: %s\n", m.Username, e)
			}
		}
	}
}
