// Command routerd runs one router of spec.md §4.8's daemon face: a single
// protocol engine driven by real UDP traffic and wall-clock ticks.
package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli"

	"github.com/routeforge/corenet/clog"
	"github.com/routeforge/corenet/corestats"
	"github.com/routeforge/corenet/daemon"
	"github.com/routeforge/corenet/protoset"
	"github.com/routeforge/corenet/rtcore"
)

var (
	errf = color.New(color.FgRed).SprintFunc()
	okf  = color.New(color.FgGreen).SprintFunc()
)

func main() {
	app := cli.NewApp()
	app.Name = "routerd"
	app.Usage = "run a single router's protocol engine over real UDP"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "config, c", Usage: "path to a router YAML config file"},
		cli.StringFlag{Name: "http", Usage: "address to serve /status and /metrics on (empty disables it)"},
	}
	app.Action = runAction

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, errf(err))
		os.Exit(1)
	}
}

func runAction(c *cli.Context) error {
	path := c.String("config")
	if path == "" {
		return cli.NewExitError("missing --config", 2)
	}

	fc, err := loadFileConfig(path)
	if err != nil {
		return cli.NewExitError(err.Error(), 2)
	}
	cfg, protoParams := fc.toDaemonConfig()
	if err := protoset.Validate(cfg.ProtocolTag); err != nil {
		return cli.NewExitError(err.Error(), 2)
	}

	log := clog.NewStderr(fmt.Sprintf("routerd[%v]", cfg.RouterID))

	engine, err := protoset.Build(cfg.ProtocolTag, cfg.RouterID, uint64(cfg.RouterID), protoParams)
	if err != nil {
		return cli.NewExitError(err.Error(), 2)
	}

	var installer rtcore.Installer = rtcore.NullInstaller{}
	if cfg.Forwarding.Enabled {
		installer = &rtcore.KernelInstaller{
			TableID:             cfg.Forwarding.TableID,
			DestinationPrefixes: cfg.Forwarding.DestinationPrefixes,
			NextHopAddresses:    cfg.Forwarding.NextHopAddresses,
			DryRun:              cfg.Forwarding.DryRun,
			Log:                 log,
		}
	}

	stats := corestats.NewRegistry(cfg.RouterID, cfg.ProtocolTag, prometheus.DefaultRegisterer)

	rt, err := daemon.New(cfg, engine, installer, log, stats)
	if err != nil {
		return cli.NewExitError(err.Error(), 2)
	}

	if addr := c.String("http"); addr != "" {
		go serveStatus(addr, rt, log)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Infof("shutdown signal received")
		rt.Shutdown()
	}()

	fmt.Fprintf(os.Stderr, "%s router %v listening on %s\n", okf("routerd:"), cfg.RouterID, rt.LocalAddr())
	if err := rt.Run(); err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	return nil
}

func serveStatus(addr string, rt *daemon.Runtime, log *clog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(rt.Status())
	})
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Errorf("status server stopped: %v", err)
	}
}
