package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KelvinMNH/FaceEventos/internal/checkin"
	"github.com/KelvinMNH/FaceEventos/internal/constants"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Submit one face sample to the active event",
	Long: `Submit a single captured sample. The sample is matched against the enrolled
roster and the decision is written to the access ledger.

Example:
  faceeventos scan --marker bio_7
  faceeventos scan --vector 0.12,-0.03,... --event 3`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

var admitCmd = &cobra.Command{
	Use:   "admit <participant-id>",
	Short: "Admit a participant found by manual lookup",
	Args:  cobra.ExactArgs(1),
	RunE:  runAdmit,
}

var companionCmd = &cobra.Command{
	Use:   "companion <responsible-id> <name>",
	Short: "Admit a companion under a participant's quota",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runCompanion,
}

var exitCmd = &cobra.Command{
	Use:   "exit <participant-id>",
	Short: "Record a participant leaving the active event",
	Args:  cobra.ExactArgs(1),
	RunE:  runExit,
}

func init() {
	rootCmd.AddCommand(scanCmd, admitCmd, companionCmd, exitCmd)

	scanCmd.Flags().Int64("event", 0, "Expected active event ID")
	scanCmd.Flags().String("device", constants.DeviceScan, "Device tag written to the record")
	scanCmd.Flags().Bool("json", false, "Output as JSON")
	addTemplateFlags(scanCmd)

	admitCmd.Flags().String("device", constants.DeviceManualConfirmed, "Device tag written to the record")
	exitCmd.Flags().String("device", constants.DeviceCheckout, "Device tag written to the record")
}

func printAdmit(res checkin.AdmitResult) {
	switch {
	case !res.Admitted:
		fmt.Printf("DENIED: face not recognized (record %d)\n", res.Record.ID)
	case res.Duplicate:
		fmt.Printf("ALREADY ADMITTED: %s at %s (record %d)\n",
			res.Participant.Name, res.Record.Timestamp.Local().Format("15:04:05"), res.Record.ID)
	default:
		fmt.Printf("ADMITTED: %s (record %d)\n", res.Participant.Name, res.Record.ID)
	}
}

func runScan(cmd *cobra.Command, args []string) error {
	tmpl, err := templateFromFlags(cmd)
	if err != nil {
		return err
	}
	if tmpl.IsEmpty() {
		return errors.New("either --vector or --marker is required")
	}

	req := checkin.SubmitSampleRequest{
		Sample: checkin.Sample{Vector: tmpl.Vector, Marker: tmpl.Marker},
		Device: mustGetString(cmd, "device"),
	}
	if id := mustGetInt64(cmd, "event"); id > 0 {
		req.EventID = &id
	}

	ctx := context.Background()
	eng, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.Close()

	res, err := eng.svc.SubmitSample(ctx, req)
	if err != nil {
		return err
	}
	if mustGetBool(cmd, "json") {
		return outputJSON(res)
	}
	printAdmit(res)
	if res.Admitted && len(req.Sample.Vector) > 0 {
		fmt.Printf("  distance: %.4f\n", res.Distance)
	}
	return nil
}

func runAdmit(cmd *cobra.Command, args []string) error {
	id, err := parseID("participant", args[0])
	if err != nil {
		return err
	}

	ctx := context.Background()
	eng, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.Close()

	res, err := eng.svc.ConfirmManualAdmit(ctx, checkin.ConfirmAdmitRequest{
		ParticipantID: id,
		Device:        mustGetString(cmd, "device"),
	})
	if err != nil {
		return err
	}
	printAdmit(res)
	return nil
}

func runCompanion(cmd *cobra.Command, args []string) error {
	id, err := parseID("participant", args[0])
	if err != nil {
		return err
	}

	ctx := context.Background()
	eng, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.Close()

	res, err := eng.svc.RegisterCompanion(ctx, checkin.CompanionRequest{
		ResponsibleID: id,
		Name:          strings.Join(args[1:], " "),
	})
	if err != nil {
		return err
	}
	fmt.Printf("ADMITTED companion %s of participant %d (record %d, document %s)\n",
		res.Companion.Name, id, res.Record.ID, res.Companion.Document)
	return nil
}

func runExit(cmd *cobra.Command, args []string) error {
	id, err := parseID("participant", args[0])
	if err != nil {
		return err
	}

	ctx := context.Background()
	eng, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.Close()

	rec, err := eng.svc.RegisterExit(ctx, checkin.ExitRequest{
		ParticipantID: id,
		Device:        mustGetString(cmd, "device"),
	})
	if err != nil {
		return err
	}
	fmt.Printf("Checked out participant %d at %s (record %d)\n",
		id, rec.Timestamp.Local().Format("15:04:05"), rec.ID)
	return nil
}
