package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/KelvinMNH/FaceEventos/internal/checkin"
	"github.com/KelvinMNH/FaceEventos/internal/config"
	"github.com/KelvinMNH/FaceEventos/internal/database"
	"github.com/KelvinMNH/FaceEventos/internal/database/mariadb"
	"github.com/KelvinMNH/FaceEventos/internal/roster"
)

var participantCmd = &cobra.Command{
	Use:   "participant",
	Short: "Enroll and look up participants",
	Long:  `List the participant roster. Use subcommands to enroll, search and import participants.`,
	RunE:  runParticipantList,
}

var participantEnrollCmd = &cobra.Command{
	Use:   "enroll <name> <document>",
	Short: "Enroll a participant",
	Long: `Enroll a participant with an optional face template.

Example:
  faceeventos participant enroll "Ana Lima" 10007919 --gender F --category Medico --marker bio_1
  faceeventos participant enroll "Bruno Costa" 10015838 --vector 0.12,-0.03,...`,
	Args: cobra.ExactArgs(2),
	RunE: runParticipantEnroll,
}

var participantSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search participants by name or document",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runParticipantSearch,
}

var participantTemplateCmd = &cobra.Command{
	Use:   "template <id>",
	Short: "Replace the face template of a participant",
	Args:  cobra.ExactArgs(1),
	RunE:  runParticipantTemplate,
}

var participantImportCmd = &cobra.Command{
	Use:   "import [roster.yaml]",
	Short: "Import participants from a roster file or the registration system",
	Long: `Import participants from a YAML roster file, or with --registration from the
confirmed registrations of the external MySQL registration system
(REGISTRATION_DATABASE_URL). Documents already registered are skipped.

Example:
  faceeventos participant import roster.yaml --activate
  faceeventos participant import --registration --event-code UNI2026`,
	Args: cobra.MaximumNArgs(1),
	RunE: runParticipantImport,
}

func init() {
	rootCmd.AddCommand(participantCmd)
	participantCmd.AddCommand(participantEnrollCmd, participantSearchCmd, participantTemplateCmd, participantImportCmd)

	participantCmd.Flags().Bool("json", false, "Output as JSON")

	participantEnrollCmd.Flags().String("gender", "", "Gender: M, F, Outro")
	participantEnrollCmd.Flags().String("birth-date", "", "Birth date (YYYY-MM-DD)")
	participantEnrollCmd.Flags().String("category", "", "Category: Medico, Outros")
	participantEnrollCmd.Flags().String("cpf", "", "CPF")
	participantEnrollCmd.Flags().String("crm", "", "CRM (physicians)")
	addTemplateFlags(participantEnrollCmd)

	addTemplateFlags(participantTemplateCmd)

	participantImportCmd.Flags().Bool("registration", false, "Read confirmed registrations from the registration database")
	participantImportCmd.Flags().String("event-code", "", "Registration event code (all events when empty)")
	participantImportCmd.Flags().Bool("activate", false, "Activate the event defined in the roster file")
	participantImportCmd.Flags().Bool("json", false, "Output the import report as JSON")
}

func addTemplateFlags(cmd *cobra.Command) {
	cmd.Flags().String("vector", "", "Comma-separated embedding vector")
	cmd.Flags().String("marker", "", "Simulation marker (simulated matcher)")
}

func templateFromFlags(cmd *cobra.Command) (database.Template, error) {
	vector, err := parseVector(mustGetString(cmd, "vector"))
	if err != nil {
		return database.Template{}, err
	}
	return database.Template{Vector: vector, Marker: strings.TrimSpace(mustGetString(cmd, "marker"))}, nil
}

func printParticipants(list []database.StoredParticipant) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tDOCUMENT\tCATEGORY\tENROLLED")
	fmt.Fprintln(w, "--\t----\t--------\t--------\t--------")
	for _, p := range list {
		enrolled := ""
		if !p.Template.IsEmpty() {
			enrolled = "*"
		}
		name := p.Name
		if p.Companion {
			name += " (companion)"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", p.ID, name, p.Document, p.Category, enrolled)
	}
	return w.Flush()
}

func runParticipantList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	eng, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.Close()

	list, err := eng.svc.ListParticipants(ctx)
	if err != nil {
		return err
	}
	if mustGetBool(cmd, "json") {
		return outputJSON(list)
	}
	if len(list) == 0 {
		fmt.Println("No participants")
		return nil
	}
	return printParticipants(list)
}

func runParticipantEnroll(cmd *cobra.Command, args []string) error {
	tmpl, err := templateFromFlags(cmd)
	if err != nil {
		return err
	}

	ctx := context.Background()
	eng, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.Close()

	p, err := eng.svc.EnrollParticipant(ctx, checkin.CreateParticipantRequest{
		Name:      args[0],
		Document:  args[1],
		Gender:    mustGetString(cmd, "gender"),
		BirthDate: mustGetString(cmd, "birth-date"),
		Category:  mustGetString(cmd, "category"),
		CPF:       mustGetString(cmd, "cpf"),
		CRM:       mustGetString(cmd, "crm"),
		Template:  tmpl,
	})
	if err != nil {
		return fmt.Errorf("failed to enroll participant: %w", err)
	}
	fmt.Printf("Enrolled participant %d: %s (%s)\n", p.ID, p.Name, p.Document)
	if p.Template.IsEmpty() {
		fmt.Println("No face template given, the participant can only be admitted manually")
	}
	return nil
}

func runParticipantSearch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	eng, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.Close()

	list, err := eng.svc.SubmitManualLookup(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Println("No matching participants")
		return nil
	}
	return printParticipants(list)
}

func runParticipantTemplate(cmd *cobra.Command, args []string) error {
	id, err := parseID("participant", args[0])
	if err != nil {
		return err
	}
	tmpl, err := templateFromFlags(cmd)
	if err != nil {
		return err
	}
	if tmpl.IsEmpty() {
		return errors.New("either --vector or --marker is required")
	}

	ctx := context.Background()
	eng, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.Close()

	p, err := eng.svc.UpdateTemplate(ctx, id, tmpl)
	if err != nil {
		return fmt.Errorf("failed to update template: %w", err)
	}
	fmt.Printf("Updated template of participant %d: %s\n", p.ID, p.Name)
	return nil
}

// loadRoster reads the roster to import from a file or the registration database.
func loadRoster(ctx context.Context, cmd *cobra.Command, cfg *config.Config, args []string) (*roster.File, error) {
	if mustGetBool(cmd, "registration") {
		if len(args) > 0 {
			return nil, errors.New("a roster file cannot be combined with --registration")
		}
		if cfg.Registration.DatabaseURL == "" {
			return nil, errors.New("REGISTRATION_DATABASE_URL environment variable is required")
		}
		pool, err := mariadb.NewPool(ctx, cfg.Registration.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to registration database: %w", err)
		}
		defer pool.Close()

		participants, err := pool.ListRegistrations(ctx, mustGetString(cmd, "event-code"))
		if err != nil {
			return nil, err
		}
		return &roster.File{Participants: participants}, nil
	}

	if len(args) == 0 {
		return nil, errors.New("a roster file or --registration is required")
	}
	return roster.LoadFile(args[0])
}

func runParticipantImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	jsonOutput := mustGetBool(cmd, "json")

	ctx := context.Background()
	f, err := loadRoster(ctx, cmd, cfg, args)
	if err != nil {
		return err
	}
	if len(f.Participants) == 0 && f.Event == nil {
		fmt.Println("Nothing to import")
		return nil
	}

	eng, err := newEngine(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer eng.Close()

	var bar *progressbar.ProgressBar
	if !jsonOutput {
		bar = progressbar.NewOptions(len(f.Participants),
			progressbar.OptionSetDescription("Importing participants"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("participants"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionFullWidth(),
		)
	}

	report, err := roster.Import(ctx, eng.svc, f, roster.Options{
		Activate: mustGetBool(cmd, "activate"),
		OnProgress: func() {
			if bar != nil {
				_ = bar.Add(1)
			}
		},
	})
	if bar != nil {
		_ = bar.Finish()
		fmt.Println()
	}
	if err != nil {
		return fmt.Errorf("import stopped: %w", err)
	}

	if jsonOutput {
		return outputJSON(importResult(report))
	}
	printImportReport(report)
	return nil
}

type importRowJSON struct {
	Row      int    `json:"row"`
	Document string `json:"document"`
	Error    string `json:"error"`
}

type importJSON struct {
	EventID  int64           `json:"event_id,omitempty"`
	Enrolled int             `json:"enrolled"`
	Skipped  int             `json:"skipped"`
	Failed   []importRowJSON `json:"failed"`
}

func importResult(report *roster.Report) importJSON {
	out := importJSON{Enrolled: report.Enrolled, Skipped: report.Skipped, Failed: []importRowJSON{}}
	if report.Event != nil {
		out.EventID = report.Event.ID
	}
	for _, row := range report.Failed {
		out.Failed = append(out.Failed, importRowJSON{Row: row.Row, Document: row.Document, Error: row.Err.Error()})
	}
	return out
}

func printImportReport(report *roster.Report) {
	if report.Event != nil {
		fmt.Printf("Event %d: %s (%s)\n", report.Event.ID, report.Event.Name, report.Event.Status)
	}
	fmt.Printf("Enrolled: %d\n", report.Enrolled)
	fmt.Printf("Skipped (already registered): %d\n", report.Skipped)
	if len(report.Failed) == 0 {
		return
	}
	fmt.Printf("Failed: %d\n", len(report.Failed))
	for _, row := range report.Failed {
		fmt.Printf("  row %d (%s): %v\n", row.Row, row.Document, row.Err)
	}
}
