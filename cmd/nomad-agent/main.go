// Command nomad-agent is the per-node daemon: it opens this node's
// repository, runs its Nomad state machine and dynamic-config service, and
// exposes both statsd counters and a Prometheus /metrics endpoint (spec
// §4.2, §4.7). The RPC surface other nodes/coordinators reach it through is
// an external collaborator (spec §1 Non-goals); this binary only runs the
// logic behind that surface.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cactus/go-statsd-client/v5/statsd"
	logging "github.com/op/go-logging"

	agentconfig "github.com/cljohnso/terracotta-platform/cmd/nomad-agent/internal/config"
	agentmetrics "github.com/cljohnso/terracotta-platform/cmd/nomad-agent/internal/metrics"
	"github.com/cljohnso/terracotta-platform/internal/dynamicconfig"
	"github.com/cljohnso/terracotta-platform/internal/nomadserver"
	"github.com/cljohnso/terracotta-platform/internal/obslog"
	"github.com/cljohnso/terracotta-platform/internal/settingcatalog"
	"github.com/cljohnso/terracotta-platform/internal/storage"
	"github.com/cljohnso/terracotta-platform/internal/validate"
)

var logger *logging.Logger

func init() {
	logger = logging.MustGetLogger("nomad-agent")
}

func main() {
	configPath := flag.String("config", "/etc/nomad-agent/nomad-agent.yaml", "path to the bootstrap config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := agentconfig.Load(configPath)
	if err != nil {
		return err
	}
	if err := obslog.Configure(obslog.Config{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		return err
	}

	repo, err := storage.Open(cfg.RepositoryRoot, cfg.NodeName)
	if err != nil {
		return fmt.Errorf("nomad-agent: opening repository: %w", err)
	}

	stats, err := statsd.NewClientWithConfig(&statsd.ClientConfig{
		Address: cfg.Statsd.Addr,
		Prefix:  cfg.Statsd.Prefix,
	})
	if err != nil {
		logger.Warningf("statsd client unavailable (%v), falling back to a no-op client", err)
		stats, _ = statsd.NewNoopClient()
	}
	defer stats.Close()

	dynamicSvc := dynamicconfig.New(dynamicconfig.Options{
		Validator:     validate.New(),
		LocalNodeName: cfg.NodeName,
	})

	srv, err := nomadserver.New(repo, settingcatalog.NewCatalog(), validate.New(), dynamicSvc, stats)
	if err != nil {
		return fmt.Errorf("nomad-agent: starting server: %w", err)
	}

	srvMetrics := agentmetrics.NewServerMetrics()
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", agentmetrics.Handler())
	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("metrics server: %v", err)
		}
	}()

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				srvMetrics.Refresh(srv)
				srvMetrics.SetRestartRequired(dynamicSvc.IsRestartRequired())
			case <-done:
				return
			}
		}
	}()

	logger.Infof("nomad-agent started: node=%s repo=%s metrics=%s", cfg.NodeName, cfg.RepositoryRoot, cfg.MetricsAddr)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	close(done)
	logger.Info("nomad-agent shutting down")
	return metricsServer.Close()
}
