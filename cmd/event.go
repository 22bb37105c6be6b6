package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/KelvinMNH/FaceEventos/internal/checkin"
	"github.com/KelvinMNH/FaceEventos/internal/database"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Create and manage events",
	Long:  `List events, or use subcommands to create events and move them through their lifecycle.`,
	RunE:  runEventList,
}

var eventCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a scheduled event",
	Long: `Create a new event in the scheduled state.

Example:
  faceeventos event create "UniEvento Tech 2026" --date 2026-03-14 --time 08:00 --companions --max-companions 2`,
	Args: cobra.ExactArgs(1),
	RunE: runEventCreate,
}

var eventActivateCmd = &cobra.Command{
	Use:   "activate <id>",
	Short: "Make an event the single active event",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEventTransition(args[0], (*checkin.Service).ActivateEvent)
	},
}

var eventFinalizeCmd = &cobra.Command{
	Use:   "finalize <id>",
	Short: "Finish an event",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEventTransition(args[0], (*checkin.Service).FinalizeEvent)
	},
}

var eventReopenCmd = &cobra.Command{
	Use:   "reopen <id>",
	Short: "Move a finished event back to scheduled",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEventTransition(args[0], (*checkin.Service).ReopenEvent)
	},
}

var eventSummaryCmd = &cobra.Command{
	Use:   "summary <id>",
	Short: "Show the access summary of an event",
	Args:  cobra.ExactArgs(1),
	RunE:  runEventSummary,
}

var eventRecordsCmd = &cobra.Command{
	Use:   "records <id>",
	Short: "List access records of an event, newest first",
	Args:  cobra.ExactArgs(1),
	RunE:  runEventRecords,
}

func init() {
	rootCmd.AddCommand(eventCmd)
	eventCmd.AddCommand(eventCreateCmd, eventActivateCmd, eventFinalizeCmd, eventReopenCmd, eventSummaryCmd, eventRecordsCmd)

	eventCmd.Flags().Bool("json", false, "Output as JSON")

	eventCreateCmd.Flags().String("date", "", "Event date (YYYY-MM-DD)")
	eventCreateCmd.Flags().String("time", "", "Start time (HH:MM)")
	eventCreateCmd.Flags().String("location", "", "Venue")
	eventCreateCmd.Flags().String("image-url", "", "Banner image URL")
	eventCreateCmd.Flags().Bool("companions", false, "Allow companions")
	eventCreateCmd.Flags().Int("max-companions", 0, "Companions per participant (0 = unlimited)")
	eventCreateCmd.Flags().Bool("checkout", false, "Record exits at the checkout totem")
	eventCreateCmd.Flags().Bool("activate", false, "Activate the event right away")
	_ = eventCreateCmd.MarkFlagRequired("date")

	eventSummaryCmd.Flags().Bool("json", false, "Output as JSON")

	eventRecordsCmd.Flags().Int("limit", 50, "Maximum number of records")
	eventRecordsCmd.Flags().String("outcome", "", "Filter by outcome: matched, unmatched")
	eventRecordsCmd.Flags().String("direction", "", "Filter by direction: entry, exit")
	eventRecordsCmd.Flags().Bool("json", false, "Output as JSON")
}

func runEventList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	eng, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.Close()

	events, err := eng.svc.ListEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to list events: %w", err)
	}
	if mustGetBool(cmd, "json") {
		return outputJSON(events)
	}
	if len(events) == 0 {
		fmt.Println("No events")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tWHEN\tSTATUS\tCOMPANIONS\tCHECKOUT")
	fmt.Fprintln(w, "--\t----\t----\t------\t----------\t--------")
	for i := range events {
		e := &events[i]
		companions := "no"
		if e.Companions.Allowed {
			companions = "unlimited"
			if e.Companions.MaxPerEscort > 0 {
				companions = fmt.Sprintf("max %d", e.Companions.MaxPerEscort)
			}
		}
		checkout := ""
		if e.CheckoutEnabled {
			checkout = "*"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", e.ID, e.Name, eventSchedule(e), e.Status, companions, checkout)
	}
	return w.Flush()
}

func runEventCreate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	eng, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.Close()

	event, err := eng.svc.CreateEvent(ctx, checkin.CreateEventRequest{
		Name:              args[0],
		Date:              mustGetString(cmd, "date"),
		Time:              mustGetString(cmd, "time"),
		Location:          mustGetString(cmd, "location"),
		ImageURL:          mustGetString(cmd, "image-url"),
		CompanionsAllowed: mustGetBool(cmd, "companions"),
		MaxCompanions:     mustGetInt(cmd, "max-companions"),
		CheckoutEnabled:   mustGetBool(cmd, "checkout"),
	})
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	fmt.Printf("Created event %d: %s (%s)\n", event.ID, event.Name, eventSchedule(event))

	if mustGetBool(cmd, "activate") {
		if _, err := eng.svc.ActivateEvent(ctx, event.ID); err != nil {
			return fmt.Errorf("failed to activate event: %w", err)
		}
		fmt.Printf("Event %d is now active\n", event.ID)
	}
	return nil
}

type eventTransition func(svc *checkin.Service, ctx context.Context, id int64) (*database.StoredEvent, error)

func runEventTransition(arg string, transition eventTransition) error {
	id, err := parseID("event", arg)
	if err != nil {
		return err
	}

	ctx := context.Background()
	eng, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.Close()

	event, err := transition(eng.svc, ctx, id)
	if err != nil {
		return err
	}
	fmt.Printf("Event %d (%s) is %s\n", event.ID, event.Name, event.Status)
	return nil
}

func runEventSummary(cmd *cobra.Command, args []string) error {
	id, err := parseID("event", args[0])
	if err != nil {
		return err
	}

	ctx := context.Background()
	eng, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.Close()

	summary, err := eng.svc.EventSummary(ctx, id)
	if err != nil {
		return err
	}
	if mustGetBool(cmd, "json") {
		return outputJSON(summary)
	}

	fmt.Printf("Event %d\n", summary.EventID)
	fmt.Printf("  Records:        %d\n", summary.Total)
	fmt.Printf("  Admitted:       %d\n", summary.Matched)
	fmt.Printf("  Not recognized: %d\n", summary.Unmatched)
	fmt.Printf("  Participants:   %d\n", summary.UniqueParticipants)
	fmt.Printf("  Companions:     %d\n", summary.Companions)
	fmt.Printf("  Exits:          %d\n", summary.Exits)
	return nil
}

func runEventRecords(cmd *cobra.Command, args []string) error {
	id, err := parseID("event", args[0])
	if err != nil {
		return err
	}

	ctx := context.Background()
	eng, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.Close()

	records, err := eng.svc.ListAccessRecords(ctx, database.RecordFilter{
		EventID:   id,
		Outcome:   database.Outcome(mustGetString(cmd, "outcome")),
		Direction: database.Direction(mustGetString(cmd, "direction")),
		Limit:     mustGetInt(cmd, "limit"),
	})
	if err != nil {
		return err
	}
	if mustGetBool(cmd, "json") {
		return outputJSON(records)
	}
	if len(records) == 0 {
		fmt.Println("No records")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tDIRECTION\tOUTCOME\tPARTICIPANT\tDEVICE")
	fmt.Fprintln(w, "--\t----\t---------\t-------\t-----------\t------")
	for _, r := range records {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Timestamp.Local().Format("2006-01-02 15:04:05"), r.Direction, r.Outcome,
			participantLabel(r.ParticipantID, r.ParticipantName), r.Device)
	}
	return w.Flush()
}
