package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/AaronLay10/TitanMedia/internal/api"
	"github.com/AaronLay10/TitanMedia/internal/config"
	"github.com/AaronLay10/TitanMedia/internal/engine"
	"github.com/AaronLay10/TitanMedia/internal/events"
	"github.com/AaronLay10/TitanMedia/internal/meter"
	"github.com/AaronLay10/TitanMedia/internal/mqtt"
	"github.com/AaronLay10/TitanMedia/internal/overlay"
	"github.com/AaronLay10/TitanMedia/internal/platform"
	"github.com/AaronLay10/TitanMedia/internal/platform/twitch"
	"github.com/AaronLay10/TitanMedia/internal/sources"
	"github.com/AaronLay10/TitanMedia/internal/studio"
	"github.com/AaronLay10/TitanMedia/internal/version"
)

const (
	// EnvAlertWebhook is the operator webhook for link alerts.
	EnvAlertWebhook = "TITAN_ALERT_WEBHOOK_URL"

	storeCheckInterval = 10 * time.Second
	alertCheckInterval = 5 * time.Second
	shutdownTimeout    = 15 * time.Second
)

func newServeCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the studio and its control API",
		Long: `Start the studio: connect the engine, restore the scene collection,
start metering and the platform integration, and serve the control API
until SIGINT or SIGTERM. The collection is saved on the way out.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

// engineLink is the connected engine plus whatever must be torn down with it.
type engineLink struct {
	client *engine.Client
	close  func()
	studio atomic.Pointer[studio.Studio]
}

func serve(ctx context.Context, cfg *config.StudioConfig) error {
	hostname, _ := os.Hostname()
	events.SetSession(uuid.NewString())
	events.Emit("info", "system.startup", "titan starting", map[string]interface{}{
		"studio":   cfg.StudioID(),
		"hostname": hostname,
		"pid":      os.Getpid(),
		"version":  version.Version,
	})

	sec, err := config.LoadSecrets()
	if err != nil {
		return err
	}
	api.InitAuth(sec)
	if err := api.InitTLS(); err != nil {
		return err
	}
	api.InitMetrics(cfg.StudioID())

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	var store studio.Store
	if st != nil {
		store = st
		defer st.Close()
		api.SetStoreState(true, false)
	} else {
		api.SetStoreState(false, true)
	}

	resolver := sources.NewResolver(cfg.Studio.Platform)
	link, err := connectEngine(cfg, resolver)
	if err != nil {
		return err
	}
	defer link.close()

	s := studio.New(link.client, store, resolver, studio.Options{
		StreamServer: cfg.Stream.Server,
		StreamKey:    sec.StreamKey,
	})
	link.studio.Store(s)
	if err := s.Bootstrap(ctx); err != nil {
		s.Close(context.Background())
		return fmt.Errorf("bootstrap: %w", err)
	}
	api.SetStudioReady(true)

	m := meter.New(link.client, meter.Options{Interval: cfg.MeterInterval(), Frames: cfg.Meter.Frames})
	m.Start()

	var runner *overlay.Runner
	if cfg.Overlay.Source != "" {
		runner, err = overlay.New(s, overlay.Options{
			Scene:    cfg.Overlay.Scene,
			Source:   cfg.Overlay.Source,
			URL:      cfg.Overlay.URL,
			Trigger:  cfg.Overlay.Trigger,
			Duration: cfg.Overlay.AlertDuration(),
			Timeout:  cfg.RequestTimeout(),
		})
		if err != nil {
			m.Stop()
			s.Close(context.Background())
			return fmt.Errorf("overlay: %w", err)
		}
	}

	var plat platform.Platform
	var tw *twitch.Client
	if cfg.Platform.Enabled {
		tw = startPlatform(ctx, cfg, sec, runner)
		plat = tw
	}

	alerter := api.NewAlerter(api.AlertConfig{WebhookURL: os.Getenv(EnvAlertWebhook)})
	alerter.Start(alertCheckInterval)

	handler := api.NewHandler(api.Deps{Studio: s, Meter: m, Platform: plat, Alerts: runner})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return api.ListenAndServe(gctx, cfg.APIAddr(), handler)
	})
	if st != nil {
		g.Go(func() error {
			watchStore(gctx, st)
			return nil
		})
	}
	runErr := g.Wait()

	log.Printf("shutting down")
	api.SetStudioReady(false)
	events.CloseAllSubscribers()
	alerter.Stop()
	if tw != nil {
		_ = tw.DisconnectChat()
	}
	if runner != nil {
		runner.Stop()
	}
	m.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Close(shutdownCtx); err != nil {
		log.Printf("save on shutdown failed: %v", err)
		if runErr == nil {
			runErr = err
		}
	}
	events.Emit("info", "system.shutdown", "titan stopped", nil)
	return runErr
}

// connectEngine builds the engine client for the configured transport. For
// MQTT it also starts the announce/heartbeat monitor, which drives the
// readiness state and resyncs the studio once the engine comes back. Without
// a configured platform the resolver follows the engine's announcement.
func connectEngine(cfg *config.StudioConfig, resolver *sources.Resolver) (*engineLink, error) {
	if cfg.EngineTransport() == "sim" {
		api.SetEngineState(true, true)
		return &engineLink{
			client: engine.NewClient(engine.NewSim(nil), cfg.RequestTimeout()),
			close:  func() {},
		}, nil
	}

	engineID := cfg.EngineID()
	mc := mqtt.NewClient(cfg.Engine.Broker, "titan-studio-"+cfg.StudioID())
	if err := mc.Connect(); err != nil {
		return nil, fmt.Errorf("connect to broker %s: %w", mc.Broker(), err)
	}

	backend := engine.NewMQTTBackend(mc, engineID)
	if err := backend.Start(); err != nil {
		mc.Disconnect()
		return nil, err
	}

	api.SetEngineState(false, false)
	link := &engineLink{client: engine.NewClient(backend, cfg.RequestTimeout())}
	monitor := mqtt.NewMonitor(cfg.Studio.Platform, nil, cfg.HeartbeatTolerance())
	monitor.OnChange(func(id string, connected bool) {
		if id != engineID {
			return
		}
		if connected && cfg.Studio.Platform == "" {
			if st := monitor.Engine(id); st != nil {
				resolver.SetPlatform(st.Platform)
			}
		}
		api.SetEngineState(connected, false)
		s := link.studio.Load()
		if !connected || s == nil {
			return
		}
		if s.OutOfSync() {
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout()*4)
				defer cancel()
				if err := s.Resync(ctx); err != nil {
					log.Printf("resync after reconnect failed: %v", err)
				}
			}()
		}
	})
	for _, topic := range []string{mqtt.AnnounceTopic("+"), mqtt.HeartbeatTopic("+")} {
		if err := mc.Subscribe(topic, monitor.Handler()); err != nil {
			mc.Disconnect()
			return nil, fmt.Errorf("subscribe %s: %w", topic, err)
		}
	}
	monitor.Start(time.Second)
	log.Printf("engine link %s via %s, topics %v", engineID, mc.Broker(), mc.Subscriptions())

	link.close = func() {
		monitor.Stop()
		mc.Disconnect()
	}
	return link, nil
}

// startPlatform builds the Twitch client, restores a saved login and joins
// chat. Failures are logged; the studio runs without the platform.
func startPlatform(ctx context.Context, cfg *config.StudioConfig, sec config.Secrets, runner *overlay.Runner) *twitch.Client {
	tw := twitch.New(twitch.Options{
		ClientID:     cfg.Platform.ClientID,
		ClientSecret: sec.TwitchClientSecret,
		RedirectURL:  cfg.Platform.RedirectURLOrDefault(),
		TokenFile:    cfg.Platform.TokenFileOrDefault(),
		Bot:          platform.NewBot(cfg.Platform.Bot.Enabled, cfg.Platform.Bot.Commands),
	})
	if runner != nil {
		tw.OnMessage(runner.HandleChat)
	}

	restored, err := tw.Restore(ctx)
	if err != nil {
		log.Printf("platform: restore login failed: %v", err)
		return tw
	}
	if !restored {
		log.Printf("platform: not logged in; POST /platform/login to authorize")
		return tw
	}
	if err := tw.ConnectChat(ctx); err != nil {
		log.Printf("platform: chat connect failed: %v", err)
	}
	return tw
}

// watchStore pings the store until ctx is done and records the result for
// /ready and the link alerts.
func watchStore(ctx context.Context, st collectionStore) {
	ticker := time.NewTicker(storeCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := st.Ping(pctx)
			cancel()
			api.SetStoreState(err == nil, false)
		}
	}
}
