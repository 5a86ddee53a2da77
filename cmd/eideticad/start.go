package main

import (
	"fmt"
	"net/http"

	"github.com/eideticadb/eidetica/pkg/config"
	"github.com/eideticadb/eidetica/pkg/database"
	"github.com/eideticadb/eidetica/pkg/instance"
	"github.com/eideticadb/eidetica/pkg/log"
	"github.com/eideticadb/eidetica/pkg/metrics"
	"github.com/eideticadb/eidetica/pkg/sync/engine"
	"github.com/eideticadb/eidetica/pkg/sync/transport"
	"github.com/eideticadb/eidetica/pkg/types"
	"github.com/spf13/cobra"
)

const systemDatabaseName = "_eidetica_system"

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Open the instance and run its sync engine until signaled to stop",
	RunE:  runStart,
}

func init() {
	startCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Address the metrics/health HTTP server listens on")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	b, err := cfg.OpenBackend()
	if err != nil {
		return fmt.Errorf("failed to open backend: %w", err)
	}

	device, err := cfg.LoadOrCreateDeviceKey()
	if err != nil {
		return fmt.Errorf("failed to load device key: %w", err)
	}

	inst, err := instance.Open(b, device)
	if err != nil {
		return fmt.Errorf("failed to open instance: %w", err)
	}
	log.Logger.Info().Str("device", string(device.PeerID())).Msg("instance opened")

	sys, err := openSystemDatabase(inst)
	if err != nil {
		return fmt.Errorf("failed to open system database: %w", err)
	}

	var eng *engine.Engine
	if cfg.Sync.Enabled {
		eng = engine.New(inst, sys, device, engine.Config{
			QueueCapacity:  cfg.Sync.QueueCapacity,
			ResyncInterval: cfg.Sync.ResyncInterval,
			RequestTimeout: cfg.Sync.RequestTimeout,
		})
		if err := inst.EnableSync(eng); err != nil {
			return fmt.Errorf("failed to start sync engine: %w", err)
		}
		log.Logger.Info().Msg("sync engine started")

		for _, tc := range cfg.Sync.Transports {
			if err := addTransport(eng, tc); err != nil {
				return fmt.Errorf("failed to add transport %q: %w", tc.Name, err)
			}
		}
	}

	metrics.SetVersion(Version)
	metrics.RegisterComponent("backend", true, "ready")
	if cfg.Sync.Enabled {
		metrics.RegisterComponent("sync_engine", true, "ready")
	} else {
		metrics.RegisterComponent("sync_engine", true, "disabled")
	}

	collector := metrics.NewCollector(newStatsProvider(inst, eng))
	collector.Start()

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", metrics.HealthHandler())
	mux.Handle("/ready", metrics.ReadyHandler())
	mux.Handle("/live", metrics.LivenessHandler())
	metricsSrv := &http.Server{Addr: metricsAddr, Handler: mux}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Logger.Error().Err(err).Msg("metrics server failed")
		}
	}()
	log.Logger.Info().Str("addr", metricsAddr).Msg("metrics/health endpoints listening")

	fmt.Printf("eideticad running. device=%s metrics=http://%s/metrics\n", device.PeerID(), metricsAddr)
	sig := waitForSignal()
	log.Logger.Info().Str("signal", sig.String()).Msg("shutting down")

	collector.Stop()
	_ = metricsSrv.Close()
	if cfg.Sync.Enabled {
		if err := inst.DisableSync(); err != nil {
			log.Logger.Warn().Err(err).Msg("sync engine did not stop cleanly")
		}
	}
	if err := b.Close(); err != nil {
		return fmt.Errorf("failed to close backend: %w", err)
	}
	fmt.Println("shutdown complete")
	return nil
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func addTransport(eng *engine.Engine, tc config.TransportConfig) error {
	switch tc.Name {
	case "http":
		if err := eng.AddTransport(tc.Name, transport.NewHTTP(eng.Handler())); err != nil {
			return err
		}
	case "p2p":
		if err := eng.AddTransport(tc.Name, transport.NewP2P()); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown transport %q", tc.Name)
	}
	if tc.BindAddr == "" {
		return nil
	}
	addr, err := eng.StartServer(tc.Name, tc.BindAddr)
	if err != nil {
		return err
	}
	log.Logger.Info().Str("transport", tc.Name).Str("addr", addr).Msg("transport server listening")
	return nil
}

// openSystemDatabase loads the instance's system database (the one the
// sync engine persists its transport, peer, and bootstrap state into),
// creating it on first start. The created tree is recorded in the
// backend's instance metadata so every later start reopens the same
// database instead of minting a new one.
func openSystemDatabase(inst *instance.Instance) (*database.Database, error) {
	meta, err := inst.Backend().GetInstanceMetadata()
	if err != nil {
		return nil, err
	}
	if len(meta.SystemRoots) > 0 {
		return inst.LoadDatabase(meta.SystemRoots[0])
	}

	db, err := inst.CreateDatabase(systemDatabaseName)
	if err != nil {
		return nil, err
	}
	meta.SystemRoots = []types.ID{db.Tree()}
	if err := inst.Backend().SetInstanceMetadata(meta); err != nil {
		return nil, err
	}
	return db, nil
}
