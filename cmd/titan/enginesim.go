package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AaronLay10/TitanMedia/internal/engine"
	"github.com/AaronLay10/TitanMedia/internal/mqtt"
	"github.com/AaronLay10/TitanMedia/internal/sources"
	"github.com/AaronLay10/TitanMedia/internal/version"
)

type engineSimOptions struct {
	*rootOptions
	HeartbeatSec int
}

func newEngineSimCommand(root *rootOptions) *cobra.Command {
	opts := &engineSimOptions{rootOptions: root}

	cmd := &cobra.Command{
		Use:   "engine-sim",
		Short: "Serve the in-memory engine over MQTT",
		Long: `Run the simulated engine as a remote engine: it answers studio requests
on the broker, announces itself and sends heartbeats. Useful for testing
engine.transport: mqtt without a real compositor.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			id := cfg.EngineID()
			mc := mqtt.NewClient(cfg.Engine.Broker, "titan-engine-"+id)
			if err := mc.Connect(); err != nil {
				return fmt.Errorf("connect to broker %s: %w", mc.Broker(), err)
			}
			defer mc.Disconnect()

			sim := engine.NewSim(nil)
			r := engine.NewResponder(mc, sim, mqtt.EngineInfo{
				ID:           id,
				Platform:     sources.NewResolver(cfg.Studio.Platform).Platform(),
				Build:        "sim-" + version.Version,
				HeartbeatSec: opts.HeartbeatSec,
			}, sim.Types())
			if err := r.Start(); err != nil {
				return err
			}
			defer r.Stop()
			log.Printf("engine-sim %s serving on %s", id, mc.Broker())

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().IntVar(&opts.HeartbeatSec, "heartbeat", 5, "heartbeat period in seconds")
	return cmd
}
