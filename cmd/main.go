package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/cyberglitchlabs/owon-xdm-remote/internal/bridge"
	"github.com/cyberglitchlabs/owon-xdm-remote/internal/bus"
	"github.com/cyberglitchlabs/owon-xdm-remote/internal/clock"
	"github.com/cyberglitchlabs/owon-xdm-remote/internal/config"
	"github.com/cyberglitchlabs/owon-xdm-remote/internal/gpio"
	"github.com/cyberglitchlabs/owon-xdm-remote/internal/indicator"
	"github.com/cyberglitchlabs/owon-xdm-remote/internal/metrics"
	"github.com/cyberglitchlabs/owon-xdm-remote/internal/provision"
	"github.com/cyberglitchlabs/owon-xdm-remote/internal/scpi"
	"github.com/cyberglitchlabs/owon-xdm-remote/internal/serial"
	"github.com/cyberglitchlabs/owon-xdm-remote/internal/wireless"
)

// version is overridden at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to the configuration file")
	provisionMode := flag.Bool("provision", false, "serve the setup portal instead of running the bridge")
	captive := flag.Bool("captive", false, "with -provision, answer every DNS query with this host")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	loadDotEnv()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("configuration failed")
	}
	setupLogging(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *provisionMode {
		if err := runPortal(ctx, cfg, *captive); err != nil {
			log.Fatal().Err(err).Msg("setup portal failed")
		}
		return
	}

	if err := runBridge(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("bridge failed")
	}
}

func loadDotEnv() {
	if _, err := os.Stat(".env"); err != nil {
		return
	}
	if err := godotenv.Load(".env"); err != nil {
		log.Warn().Err(err).Msg("loading .env failed")
	}
}

func setupLogging(cfg config.LogConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"})
	}
}

// logStartup is the cold-start status header: enough to identify the box,
// the build and the instrument wiring from the journal alone.
func logStartup(cfg *config.Config) {
	host, _ := os.Hostname()
	log.Info().
		Str("version", version).
		Str("go", runtime.Version()).
		Str("platform", runtime.GOOS+"/"+runtime.GOARCH).
		Str("host", host).
		Int("pid", os.Getpid()).
		Msg("owon-xdm-remote starting")
	log.Info().
		Str("device", cfg.Serial.Device).
		Int("baud", cfg.Serial.Baud).
		Str("broker", cfg.MQTT.Broker).
		Int("port", cfg.MQTT.Port).
		Str("prefix", cfg.MQTT.TopicPrefix).
		Str("dialect", cfg.Dialect).
		Msg("bridge configuration")
}

func runPortal(ctx context.Context, cfg *config.Config, captive bool) error {
	if captive {
		ip, err := portalIP()
		if err != nil {
			return fmt.Errorf("captive mode needs a local IPv4: %w", err)
		}
		conn, err := net.ListenPacket("udp4", ":53")
		if err != nil {
			return fmt.Errorf("listen dns: %w", err)
		}
		go func() {
			if err := provision.ServeDNS(ctx, conn, ip); err != nil {
				log.Error().Err(err).Msg("dns responder failed")
			}
		}()
		log.Info().Str("ip", ip.String()).Msg("captive dns answering all queries")
	}
	portal := provision.NewPortal(cfg.Provision.Record, cfg.Provision.Listen)
	return portal.Run(ctx)
}

// portalIP picks the address the captive DNS hands out: the first
// non-loopback IPv4 on any interface.
func portalIP() (net.IP, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, err
	}
	for _, addr := range addrs {
		ipnet, ok := addr.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipnet.IP.To4(); ip4 != nil {
			return ip4, nil
		}
	}
	return nil, errors.New("no non-loopback ipv4 address")
}

func runBridge(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	dialect, err := scpi.Lookup(cfg.Dialect)
	if err != nil {
		return err
	}
	logStartup(cfg)

	reg := prometheus.NewRegistry()
	met := metrics.New(reg)
	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Listen, reg); err != nil {
				log.Error().Err(err).Msg("metrics server failed")
			}
		}()
	}

	clk := clock.System{}
	tr := serial.NewLine(serial.Config{Device: cfg.Serial.Device, Baud: cfg.Serial.Baud}, clk)
	if err := tr.Open(); err != nil {
		return err
	}

	topics := bus.TopicsFor(cfg.MQTT.TopicPrefix)
	client, err := bus.Connect(bus.Options{
		Broker:      cfg.MQTT.Broker,
		Port:        cfg.MQTT.Port,
		ClientID:    cfg.MQTT.ClientID,
		Username:    cfg.MQTT.Username,
		Password:    cfg.MQTT.Password,
		WillTopic:   topics.Status,
		WillPayload: bridge.StatusOffline,
	})
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	commands, err := client.SubscribeCommands(topics.Command, clk)
	if err != nil {
		return err
	}

	orch := bridge.New(bridge.Config{
		Transport: tr,
		Commands:  commands,
		Publisher: client,
		Topics:    topics,
		Dialect:   dialect,
		Probe:     buildProbe(tr, cfg.GPIO),
		Indicator: buildIndicator(cfg.GPIO, clk),
		RSSI:      buildRSSI(cfg.Wireless),
		Clock:     clk,
		Metrics:   met,
	})
	return orch.Run(ctx)
}

// buildProbe prefers the RX-sense pin; the transport activity probe covers
// boxes without the extra wire.
func buildProbe(tr serial.Transport, cfg config.GPIOConfig) bridge.LevelProbe {
	if cfg.RXSensePin <= 0 {
		return bridge.NewActivityProbe(tr)
	}
	line, err := gpio.Open(cfg.RXSensePin, gpio.In)
	if err != nil {
		log.Warn().Err(err).Int("pin", cfg.RXSensePin).Msg("rx sense pin unavailable, using activity probe")
		return bridge.NewActivityProbe(tr)
	}
	return bridge.PinProbe{Pin: line}
}

func buildIndicator(cfg config.GPIOConfig, clk clock.Clock) indicator.Indicator {
	if cfg.LEDPin <= 0 {
		return indicator.Nop{}
	}
	line, err := gpio.Open(cfg.LEDPin, gpio.Out)
	if err != nil {
		log.Warn().Err(err).Int("pin", cfg.LEDPin).Msg("status led unavailable")
		return indicator.Nop{}
	}
	return indicator.NewLED(line, clk)
}

func buildRSSI(cfg config.WirelessConfig) wireless.Source {
	src, err := wireless.NewProcfs("", cfg.Interface)
	if err != nil {
		log.Warn().Err(err).Msg("wireless stats unavailable, link quality disabled")
		return wireless.Unavailable{}
	}
	return src
}
