// Command softgwd wires the router core (iface, arpcache, nat, pipeline,
// timekeeper) to a logger, a metrics endpoint and a NIC transport. The NIC
// transport here is a loopback stand-in for illustration: a real
// deployment supplies its own implementation of the [NIC] interface
// talking to TAP devices or raw sockets, which is explicitly out of
// scope for the router core itself.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/soygw/softgw/arpcache"
	"github.com/soygw/softgw/config"
	"github.com/soygw/softgw/iface"
	"github.com/soygw/softgw/nat"
	"github.com/soygw/softgw/pipeline"
	"github.com/soygw/softgw/timekeeper"
)

func main() {
	configPath := flag.String("config", "/etc/softgw/softgw.toml", "path to configuration file")
	metricsListen := flag.String("metrics-listen", "127.0.0.1:9292", "address to serve /metrics on")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	logger := newLogger(*verbose)

	knobs, err := config.Load(*configPath)
	if err != nil {
		logger.Warn("softgwd: using default knobs, config load failed", slog.String("path", *configPath), slog.String("error", err.Error()))
		knobs = config.DefaultKnobs()
	}

	registry, nics, err := demoTopology()
	if err != nil {
		logger.Error("softgwd: building interface registry", slog.String("error", err.Error()))
		os.Exit(1)
	}

	clock := clockwork.NewRealClock()
	arpCache := arpcache.New(clock)
	natTable := nat.New(clock, nat.Config{
		ICMPTimeout:           knobs.ICMPTimeout.AsDuration(),
		TCPEstablishedTimeout: knobs.TCPEstablishedTimeout.AsDuration(),
		TCPTransitoryTimeout:  knobs.TCPTransitoryTimeout.AsDuration(),
	})

	sendFunc := func(frame []byte, ifaceName string) error {
		nic, ok := nics[ifaceName]
		if !ok {
			return fmt.Errorf("softgwd: no NIC registered for interface %q", ifaceName)
		}
		return nic.Send(frame)
	}

	router := pipeline.New(registry, arpCache, natTable, knobs.NATEnabled, sendFunc, logger)
	for _, nic := range nics {
		nic.setHandler(router.HandleFrame)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tk := timekeeper.New(clock, arpCache, natTable, func(result arpcache.TickResult) {
		for _, retry := range result.Retries {
			if err := router.RetryARP(retry); err != nil {
				logger.Warn("softgwd: arp retry failed", slog.String("target", fmt.Sprintf("%v", retry.TargetIP)), slog.String("error", err.Error()))
			}
		}
		for _, expired := range result.Expired {
			router.ExpireARPRequest(expired)
		}
	}, logger)
	go tk.Run(ctx)

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	metricsSrv := &http.Server{Addr: *metricsListen, Handler: mux}
	go func() {
		logger.Info("softgwd: metrics server listening", slog.String("addr", *metricsListen))
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("softgwd: metrics server failed", slog.String("error", err.Error()))
		}
	}()

	logger.Info("softgwd: router core ready", slog.Int("interfaces", len(registry.Interfaces())), slog.Bool("nat", knobs.NATEnabled))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("softgwd: shutting down")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: level}))
}

// demoTopology builds a small two-interface registry (a LAN side and a WAN
// side with a default route) and a loopback NIC per interface, purely to
// give the command something concrete to wire and run. A real deployment
// replaces this with interfaces/routes read from its own provisioning
// source, per spec.md §1/§6.
func demoTopology() (*iface.Registry, map[string]*loopbackNIC, error) {
	lan := iface.Interface{Name: "lan0", MAC: [6]byte{0x02, 0, 0, 0, 0, 1}, IPv4: [4]byte{10, 0, 0, 1}}
	wan := iface.Interface{Name: "wan0", MAC: [6]byte{0x02, 0, 0, 1, 0, 1}, IPv4: [4]byte{203, 0, 113, 10}}

	routes := []iface.Route{
		{Dest: [4]byte{10, 0, 0, 0}, Mask: [4]byte{255, 255, 255, 0}, Gateway: [4]byte{10, 0, 0, 1}, Interface: "lan0"},
		{Dest: [4]byte{0, 0, 0, 0}, Mask: [4]byte{0, 0, 0, 0}, Gateway: [4]byte{203, 0, 113, 1}, Interface: "wan0"},
	}

	registry, err := iface.NewRegistry([]iface.Interface{lan, wan}, routes)
	if err != nil {
		return nil, nil, err
	}

	nics := map[string]*loopbackNIC{
		"lan0": newLoopbackNIC("lan0"),
		"wan0": newLoopbackNIC("wan0"),
	}
	return registry, nics, nil
}
