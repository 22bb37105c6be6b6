package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the backend, matcher and active event",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	eng, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.Close()

	report, err := eng.svc.Status(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Backend:      %s\n", report.Backend)
	fmt.Printf("Matcher:      %s\n", report.Matcher)
	fmt.Printf("Participants: %d (%d enrolled)\n", report.Participants, report.Enrolled)
	if report.ActiveEvent == nil {
		fmt.Println("Active event: none")
		return nil
	}
	e := report.ActiveEvent
	fmt.Printf("Active event: %d %s (%s)\n", e.ID, e.Name, eventSchedule(e))

	summary, err := eng.svc.EventSummary(ctx, e.ID)
	if err != nil {
		return err
	}
	fmt.Printf("Admitted:     %d (%d participants, %d companions)\n", summary.Matched, summary.UniqueParticipants, summary.Companions)
	fmt.Printf("Denied:       %d\n", summary.Unmatched)
	return nil
}
