package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/KelvinMNH/FaceEventos/internal/checkin"
	"github.com/KelvinMNH/FaceEventos/internal/config"
	"github.com/KelvinMNH/FaceEventos/internal/notify"
	"github.com/KelvinMNH/FaceEventos/internal/web"
	"github.com/KelvinMNH/FaceEventos/internal/web/handlers"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the FaceEventos web server.
The server exposes the check-in API used by entrance totems and the operator
dashboard, and streams new access records live. When MQTT_BROKER is set every
committed record is also published to the broker.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
}

// resolveServeHostPort applies the flag overrides on top of the environment.
func resolveServeHostPort(cmd *cobra.Command, cfg *config.Config) {
	if port := mustGetInt(cmd, "port"); port > 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}
}

// startMQTT connects the publisher and starts its send loop. A broker that is
// not reachable yet is retried in the background.
func startMQTT(ctx context.Context, cfg config.MQTTConfig) *notify.MQTTPublisher {
	publisher := notify.NewMQTTPublisher(cfg, slog.Default())
	if err := publisher.Connect(ctx); err != nil {
		slog.Warn("mqtt broker not reachable, notices are dropped until it is", "broker", cfg.Broker, "error", err)
	}
	go publisher.Run(ctx)
	return publisher
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	resolveServeHostPort(cmd, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broadcaster := handlers.NewRecordBroadcaster()
	notifiers := checkin.MultiNotifier{broadcaster}

	if cfg.MQTT.Broker != "" {
		publisher := startMQTT(ctx, cfg.MQTT)
		defer publisher.Close()
		notifiers = append(notifiers, publisher)
	}

	eng, err := newEngine(ctx, cfg, notifiers)
	if err != nil {
		return err
	}
	defer eng.Close()

	server := web.NewServer(cfg, eng.svc, broadcaster, slog.Default())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Using %s backend, %s matcher\n", eng.store.Backend(), cfg.Matcher.Strategy)
	fmt.Printf("Starting FaceEventos on http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
