package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fernandafs/P2P-ProjectNapster/config"
	"github.com/fernandafs/P2P-ProjectNapster/discovery"
	"github.com/fernandafs/P2P-ProjectNapster/peer"
	"github.com/fernandafs/P2P-ProjectNapster/tracker"
	"github.com/fernandafs/P2P-ProjectNapster/util"
)

func setupLogger(debug bool) error {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if !debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
		cfg.DisableStacktrace = true
	}
	logger, err := cfg.Build()
	if err != nil {
		return err
	}
	zap.ReplaceGlobals(logger)
	return nil
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "JSON configuration file",
			EnvVars: []string{"P2P_CONFIG"},
		},
		&cli.BoolFlag{
			Name:  "debug",
			Usage: "log at debug level",
		},
	}
}

func trackerFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "listen", Aliases: []string{"l"}, Usage: "host:port to listen on"},
		&cli.BoolFlag{Name: "mdns", Usage: "advertise the tracker over mDNS"},
		&cli.Int64Flag{Name: "max-sessions", Usage: "sessions served at once"},
		&cli.DurationFlag{Name: "idle-timeout", Usage: "close sessions idle for this long, 0 disables"},
	}
}

func peerFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "self", Aliases: []string{"s"}, Usage: "host:port this peer serves downloads on"},
		&cli.StringFlag{Name: "tracker", Aliases: []string{"t"}, Usage: "tracker host:port, looked up over mDNS when empty"},
		&cli.StringFlag{Name: "dir", Aliases: []string{"d"}, Usage: "share folder"},
		&cli.DurationFlag{Name: "dial-timeout", Usage: "connection establishment timeout"},
		&cli.DurationFlag{Name: "request-timeout", Usage: "bound on a whole request, 0 disables"},
		&cli.DurationFlag{Name: "discovery-timeout", Usage: "how long to look for a tracker over mDNS"},
	}
}

func main() {
	app := cli.App{
		Name:      util.AppName,
		Usage:     "a p2p file sharing system consisting of a tracker and multiple peers",
		UsageText: fmt.Sprintf("%s [--config file] command [flags]", util.AppName),
		Flags:     globalFlags(),
		Before: func(c *cli.Context) error {
			return setupLogger(c.Bool("debug"))
		},
		Commands: []*cli.Command{
			{
				Name:   "tracker",
				Usage:  "Run in tracker mode",
				Flags:  trackerFlags(),
				Action: runTracker,
			},
			{
				Name:   "peer",
				Usage:  "Run in peer mode",
				Flags:  peerFlags(),
				Action: runPeer,
			},
		},
	}

	err := app.Run(os.Args)
	_ = zap.L().Sync()
	if err != nil {
		zap.L().Fatal("exiting", zap.Error(err))
	}
}

// trackerConfig layers the flags that were set explicitly over the config
// file, which itself overlays the defaults.
func trackerConfig(c *cli.Context) (config.Tracker, error) {
	file, err := config.Load(c.String("config"))
	if err != nil {
		return config.Tracker{}, err
	}
	cfg := file.Tracker
	if c.IsSet("listen") {
		cfg.ListenAddr = c.String("listen")
	}
	if c.IsSet("mdns") {
		cfg.MDNS = c.Bool("mdns")
	}
	if c.IsSet("max-sessions") {
		cfg.MaxSessions = c.Int64("max-sessions")
	}
	if c.IsSet("idle-timeout") {
		cfg.SessionIdleTimeout = c.Duration("idle-timeout")
	}
	return cfg, cfg.Validate()
}

func peerConfig(c *cli.Context) (config.Peer, error) {
	file, err := config.Load(c.String("config"))
	if err != nil {
		return config.Peer{}, err
	}
	cfg := file.Peer
	if c.IsSet("self") {
		cfg.SelfAddr = c.String("self")
	}
	if c.IsSet("tracker") {
		cfg.TrackerAddr = c.String("tracker")
	}
	if c.IsSet("dir") {
		cfg.ShareDir = c.String("dir")
	}
	if c.IsSet("dial-timeout") {
		cfg.DialTimeout = c.Duration("dial-timeout")
	}
	if c.IsSet("request-timeout") {
		cfg.RequestTimeout = c.Duration("request-timeout")
	}
	if c.IsSet("discovery-timeout") {
		cfg.DiscoveryTimeout = c.Duration("discovery-timeout")
	}
	return cfg, cfg.Validate()
}

func runTracker(c *cli.Context) error {
	logger := zap.L()
	cfg, err := trackerConfig(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	t := tracker.New(cfg, logger)
	if err := t.Listen(); err != nil {
		return err
	}

	if cfg.MDNS {
		_, port, _ := net.SplitHostPort(t.Addr().String())
		portNumber, _ := strconv.Atoi(port)
		adv, err := discovery.Advertise(util.AppName+"-tracker", portNumber)
		if err != nil {
			logger.Warn("mDNS advertisement failed", zap.Error(err))
		} else {
			defer adv.Shutdown()
			logger.Info("advertising tracker over mDNS", zap.String("service", discovery.ServiceName))
		}
	}

	return t.Serve(ctx)
}

func runPeer(c *cli.Context) error {
	logger := zap.L()
	cfg, err := peerConfig(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.TrackerAddr == "" {
		addr, err := discovery.LookupTracker(ctx, cfg.DiscoveryTimeout)
		if err != nil {
			return fmt.Errorf("tracker lookup: %w", err)
		}
		logger.Info("found tracker over mDNS", zap.String("tracker", addr))
		cfg.TrackerAddr = addr
	}

	p, err := peer.New(cfg, logger)
	if err != nil {
		return err
	}
	defer p.Close()

	if err := p.Listen(); err != nil {
		return err
	}
	if err := p.Join(ctx); err != nil {
		logger.Error("join failed, retry with the join command", zap.Error(err))
	}

	return p.RunConsole(ctx, os.Stdin, os.Stdout)
}
