// Command missionctl runs the Robot Control Centre's Mission Orchestrator:
// the Operator Listener, Planner/Executor (which spawns detached Snapshot
// Workers), and Motion-Controller Listener, wired and supervised here.
//
// Component wiring follows a fixed order: build the shared state first,
// then the long-lived roles, then start each with `go x.Run(ctx)`.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/fieldrelay/missionctl/internal/bus"
	"github.com/fieldrelay/missionctl/internal/camera"
	"github.com/fieldrelay/missionctl/internal/config"
	"github.com/fieldrelay/missionctl/internal/executor"
	"github.com/fieldrelay/missionctl/internal/missioncontext"
	"github.com/fieldrelay/missionctl/internal/missionlog"
	"github.com/fieldrelay/missionctl/internal/motionlink"
	"github.com/fieldrelay/missionctl/internal/operator"
	"github.com/fieldrelay/missionctl/internal/planner"
	"github.com/fieldrelay/missionctl/internal/recognizer"
	"github.com/fieldrelay/missionctl/internal/snapshot"
	"github.com/fieldrelay/missionctl/internal/transport"
	"github.com/fieldrelay/missionctl/internal/types"
)

// Version is set via -ldflags at build time.
var Version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load(".env")

	var configPath string

	rootCmd := &cobra.Command{
		Use:     "missionctl",
		Short:   "Mission Orchestrator for the Robot Control Centre",
		Version: Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrchestrator(cmd.Context(), configPath)
		},
	}
	rootCmd.Flags().StringVar(&configPath, "config", "missionctl.yaml", "path to config file")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return rootCmd.ExecuteContext(ctx)
}

func runOrchestrator(ctx context.Context, configPath string) error {
	cfg := config.DefaultConfig()
	if _, err := os.Stat(configPath); err == nil {
		loaded, err := config.LoadFromFile(configPath)
		if err != nil {
			return fmt.Errorf("missionctl: %w", err)
		}
		cfg = loaded
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("missionctl: invalid config: %w", err)
	}

	operatorConn, err := transport.Open(transport.Kind(cfg.Operator.TransportKind), cfg.Operator.Addr, cfg.Operator.AsServer)
	if err != nil {
		return fmt.Errorf("missionctl: operator transport: %w", err)
	}
	defer operatorConn.Close()

	motionConn, err := transport.Open(transport.Kind(cfg.Motion.TransportKind), cfg.Motion.Addr, cfg.Motion.AsServer)
	if err != nil {
		return fmt.Errorf("missionctl: motion transport: %w", err)
	}
	defer motionConn.Close()

	var capturer camera.Capturer
	if cfg.Camera.Kind == "hardware" {
		capturer = camera.NewHardwareCapturer(cfg.Camera.Binary, cfg.Camera.OutDir)
	} else {
		_ = os.MkdirAll(cfg.Camera.OutDir, 0o755)
		capturer = camera.NewLoopbackCapturer(cfg.Camera.FixturePath, cfg.Camera.OutDir)
	}

	mctx := missioncontext.New()
	logReg := missionlog.NewRegistry(cfg.Log.Dir)

	eventBus := bus.New()
	go relayStatus(ctx, eventBus.NewTap())

	motionLink := motionlink.NewLink(motionConn)
	motionListener := motionlink.NewListener(mctx, motionConn)
	directIDs := motionlink.NewDirectIDAllocator()

	operatorSender := operator.NewSender(operatorConn)
	operatorListener := operator.NewListener(mctx, operatorConn, operatorSender, motionLink, directIDs)

	plannerClient := planner.New(cfg.Planner.BaseURL)
	recognizerClient := recognizer.New(cfg.Recognizer.BaseURL)
	snapWorker := snapshot.New(mctx, capturer, operatorSender, recognizerClient)

	exec := executor.New(mctx, plannerClient, motionLink, operatorSender, snapWorker, logReg, eventBus)

	log.Printf("[MISSIONCTL] starting, operator=%s motion=%s", cfg.Operator.Addr, cfg.Motion.Addr)

	go motionListener.Run(ctx)
	go operatorListener.Run(ctx)
	go exec.Run(ctx)

	<-ctx.Done()
	log.Printf("[MISSIONCTL] shutting down")
	return nil
}

// relayStatus taps every bus event read-only and logs it, using its own
// dedicated NewTap() so any other subscriber is unaffected by how fast this
// loop drains.
func relayStatus(ctx context.Context, tap <-chan types.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-tap:
			log.Printf("[STATUS] %s: %v", msg.Kind, msg.Payload)
		}
	}
}
