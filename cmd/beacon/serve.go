// serve.go — the long-running control plane process.
// Wires config → logging → telemetry → gate/store/broker/registry →
// providers, then runs until signalled. The control-protocol transport
// attaches to the registry through its exported surface (ListAllTools,
// ExecuteTool, OnConnected/OnDisconnected); its wire framing lives outside
// this binary.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/beacon-devtools/beacon/internal/capture"
	"github.com/beacon-devtools/beacon/internal/config"
	"github.com/beacon-devtools/beacon/internal/logging"
	"github.com/beacon-devtools/beacon/internal/registry"
	"github.com/beacon-devtools/beacon/internal/session"
	"github.com/beacon-devtools/beacon/internal/telemetry"
	"github.com/beacon-devtools/beacon/internal/tools/interact"
	"github.com/beacon-devtools/beacon/internal/tools/observe"
)

func newServeCmd() *cobra.Command {
	var actor string
	var healthInterval time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the browser control plane",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), actor, healthInterval)
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "Client identity for audit and rate accounting")
	cmd.Flags().DurationVar(&healthInterval, "health-interval", time.Minute, "How often buffered health events are flushed to the log")
	return cmd
}

func runServe(ctx context.Context, actor string, healthInterval time.Duration) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logging.SetLevel(cfg.Log.Level)
	if cfg.Log.File != "" {
		closer, err := logging.SetupFile(cfg.Log.File)
		if err != nil {
			return err
		}
		defer closer.Close()
	}
	log := logging.Named("serve")

	tel, err := telemetry.Setup(ctx, cfg.TelemetrySetup())
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("telemetry shutdown incomplete")
		}
	}()

	gate, err := cfg.BuildGate()
	if err != nil {
		return err
	}
	store := capture.NewStore(cfg.Capacities())
	broker := session.NewBroker(logging.Named("session"))
	health := telemetry.NewHealthReporter(gate.Sanitizer)

	reg := registry.New(broker, gate)
	reg.SetActor(actor)
	reg.Notify(func() {
		log.WithField("tools", len(reg.ListAllTools())).Debug("capability list changed")
	})

	reg.Register(observe.NewProvider(store, gate, actor), false)
	reg.BindDynamic(func(session.Client) registry.Provider {
		return interact.NewProvider(gate, actor)
	})

	log.WithFields(logging.Fields{
		"version": version,
		"tools":   len(reg.ListAllTools()),
	}).Info("control plane ready")
	health.Record("control_plane_started", map[string]any{"version": version})

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			flushHealth(log, health)
		case s := <-sig:
			log.WithField("signal", s.String()).Info("shutting down")
			reg.OnDisconnected()
			flushHealth(log, health)
			return nil
		case <-ctx.Done():
			reg.OnDisconnected()
			return ctx.Err()
		}
	}
}

func flushHealth(log *logging.Entry, health *telemetry.HealthReporter) {
	for _, event := range health.Flush() {
		log.WithFields(logging.Fields{
			"event":   event.Name,
			"payload": event.Payload,
		}).Info("health")
	}
}
