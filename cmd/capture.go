package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/KelvinMNH/FaceEventos/internal/capture"
	"github.com/KelvinMNH/FaceEventos/internal/checkin"
	"github.com/KelvinMNH/FaceEventos/internal/constants"
)

var captureCmd = &cobra.Command{
	Use:   "capture [feed.jsonl]",
	Short: "Run a capture loop over a JSON-lines sample feed",
	Long: `Run an entrance totem: read one frame per line from a feed file (or stdin
when omitted or "-") and submit it to the active event, throttled by the
admit and deny cooldowns (SCAN_ADMIT_COOLDOWN, SCAN_DENY_COOLDOWN).

Each line is {"vector": [...]} or {"marker": "bio_7"}; {} is a frame without a face.
The loop stops at the end of the feed or on Ctrl+C.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCapture,
}

func init() {
	rootCmd.AddCommand(captureCmd)

	captureCmd.Flags().Int64("event", 0, "Expected active event ID")
	captureCmd.Flags().String("device", constants.DeviceScan, "Device tag written to the records")
}

func openFeed(args []string) (io.Reader, error) {
	if len(args) == 0 || args[0] == "-" {
		return os.Stdin, nil
	}
	f, err := os.Open(args[0])
	if err != nil {
		return nil, fmt.Errorf("failed to open feed: %w", err)
	}
	return f, nil
}

func runCapture(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	feed, err := openFeed(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var notifier checkin.Notifier
	if cfg.MQTT.Broker != "" {
		publisher := startMQTT(ctx, cfg.MQTT)
		defer publisher.Close()
		notifier = publisher
	}

	eng, err := newEngine(ctx, cfg, notifier)
	if err != nil {
		return err
	}
	defer eng.Close()

	sessionCfg := capture.Config{
		PollInterval:  cfg.Scan.PollInterval,
		AdmitCooldown: cfg.Scan.AdmitCooldown,
		DenyCooldown:  cfg.Scan.DenyCooldown,
		RecentTTL:     cfg.Scan.RecentTTL,
		Device:        mustGetString(cmd, "device"),
	}
	if id := mustGetInt64(cmd, "event"); id > 0 {
		sessionCfg.EventID = &id
	}

	var admitted, denied int
	session := capture.NewSession(capture.NewLineSource(feed), eng.svc, sessionCfg,
		capture.WithLogger(slog.Default()),
		capture.WithResultHandler(func(r capture.Result) {
			if r.Admit.Admitted {
				admitted++
			} else {
				denied++
			}
			if r.Recent {
				return
			}
			printAdmit(r.Admit)
		}),
		capture.WithErrorHandler(func(err error) {
			if errors.Is(err, io.EOF) {
				cancel()
				return
			}
			fmt.Fprintf(os.Stderr, "capture error: %v\n", err)
			if errors.Is(err, checkin.ErrNoActiveEvent) {
				cancel()
			}
		}),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			fmt.Println("\nStopping capture...")
			cancel()
		case <-ctx.Done():
		}
	}()

	fmt.Printf("Capture session %s started (device %s)\n", session.ID(), sessionCfg.Device)
	if err := session.Run(ctx); err != nil {
		return err
	}
	fmt.Printf("Session finished: %d admitted, %d denied\n", admitted, denied)
	return nil
}
