package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zoobzio/capitan"
	"google.golang.org/grpc"

	"github.com/mimipynb/agentDial/internal/config"
	"github.com/mimipynb/agentDial/internal/signals"
	"github.com/mimipynb/agentDial/internal/state"
	"github.com/mimipynb/agentDial/internal/transport"
	"github.com/mimipynb/agentDial/internal/trial"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gRPC tuner service",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

// #region serve
func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.ListenAddr = serveAddr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	var store *state.Store
	if cfg.DBPath != "" {
		store, err = state.NewStore(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer store.Close()
		log.Printf("checkpoints: %s", cfg.DBPath)
	} else {
		log.Println("checkpoints: disabled (in-memory trials)")
	}

	observer := capitan.Observe(logEvent)
	defer observer.Close()

	manager := trial.NewManager(store, cfg.ManagerConfig())
	srv := grpc.NewServer()
	transport.RegisterTunerServer(srv, transport.NewServer(manager, cfg.StartConfig(), signals.NewProducer(nil, cfg.Signals)))

	lis, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.ListenAddr, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		log.Println("shutting down")
		srv.GracefulStop()
	}()

	log.Printf("tuner listening on %s (policy=%s)", lis.Addr(), cfg.Policy.Kind)
	if err := srv.Serve(lis); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
// #endregion serve

// #region events
func logEvent(_ context.Context, e *capitan.Event) {
	id, _ := trial.TrialIDKey.From(e)
	switch e.Signal() {
	case trial.TurnApplied:
		turn, _ := trial.TurnKey.From(e)
		actions, _ := trial.ActionsKey.From(e)
		temp, _ := trial.TemperatureKey.From(e)
		topK, _ := trial.TopKKey.From(e)
		topP, _ := trial.TopPKey.From(e)
		log.Printf("[%s] turn %d applied: %s -> temperature=%.3f top_k=%.0f top_p=%.3f",
			id, turn, actions, temp, topK, topP)
	case trial.TurnRejected, trial.PersistFailed:
		msg, _ := trial.ErrorKey.From(e)
		log.Printf("[%s] %s: %s", id, e.Signal().Name(), msg)
	default:
		log.Printf("[%s] %s", id, e.Signal().Name())
	}
}
// #endregion events
