/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Command raterelay answers work requests received from a Redis stream at a bounded, runtime-adjustable rate.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	"github.com/acronis/go-raterelay/config"
	"github.com/acronis/go-raterelay/internal/version"
	"github.com/acronis/go-raterelay/log"
	"github.com/acronis/go-raterelay/opserver"
	"github.com/acronis/go-raterelay/redisbus"
	"github.com/acronis/go-raterelay/relay"
	"github.com/acronis/go-raterelay/service"
)

const envVarsPrefix = "raterelay"

type appConfig struct {
	Log      *log.Config
	Relay    *relay.Config
	Bus      *redisbus.Config
	OpServer *opserver.Config
}

func newAppConfig() *appConfig {
	return &appConfig{
		Log:      log.NewConfig(),
		Relay:    relay.NewConfig(),
		Bus:      redisbus.NewConfig(),
		OpServer: opserver.NewConfig(),
	}
}

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "raterelay: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	flags := pflag.NewFlagSet("raterelay", pflag.ContinueOnError)
	configPath := flags.StringP("config", "c", "", "path to YAML configuration file (environment variables are used if empty)")
	printVersion := flags.Bool("version", false, "print version and exit")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if *printVersion {
		fmt.Println(version.Get())
		return nil
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger, closeLog := log.NewLogger(cfg.Log)
	defer closeLog()

	client, err := redisbus.Connect(ctx, cfg.Bus, logger)
	if err != nil {
		logger.Error("failed to connect to the bus", log.Error(err))
		return err
	}
	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			logger.Warn("failed to close Redis client", log.Error(closeErr))
		}
	}()

	unit, err := newUnit(cfg, client, logger)
	if err != nil {
		logger.Error("failed to create relay", log.Error(err))
		return err
	}
	return service.New(logger, unit).StartContext(ctx)
}

func loadConfig(path string) (*appConfig, error) {
	cfg := newAppConfig()
	loader := config.NewDefaultLoader(envVarsPrefix)
	if err := cfg.Relay.BindLegacyEnv(loader.DataProvider); err != nil {
		return nil, err
	}
	if err := cfg.Bus.BindLegacyEnv(loader.DataProvider); err != nil {
		return nil, err
	}
	if path == "" {
		return cfg, loader.LoadFromEnv(cfg.Log, cfg.Relay, cfg.Bus, cfg.OpServer)
	}
	return cfg, loader.LoadFromFile(path, config.DataTypeYAML, cfg.Log, cfg.Relay, cfg.Bus, cfg.OpServer)
}

func newUnit(cfg *appConfig, client redis.UniversalClient, logger log.FieldLogger) (service.Unit, error) {
	rel, err := relay.New(cfg.Relay, redisbus.NewSender(client, cfg.Bus.MaxLen),
		logger.With(log.String("location", cfg.Relay.Location)),
		relay.WithMetricsCollector(relay.NewPrometheusMetricsWithOpts(relay.PrometheusMetricsOpts{
			ConstLabels: version.AddPrometheusLabel(prometheus.Labels{"location": cfg.Relay.Location}),
		})))
	if err != nil {
		return nil, err
	}

	workReceiver := redisbus.NewReceiver(client, cfg.Relay.ServiceAddress, cfg.Bus,
		func(ctx context.Context, msg *redisbus.Message) error {
			return rel.Submit(ctx, relay.NewPendingRequest(msg.CorrelationID, msg.ReplyTo, msg.Body, msg))
		}, logger)

	controlReceiver := redisbus.NewReceiver(client, cfg.Relay.ControlAddress, cfg.Bus,
		func(ctx context.Context, msg *redisbus.Message) error {
			err := rel.SubmitControl(ctx, &relay.ControlMessage{
				Properties:    msg.Properties,
				ReplyTo:       msg.ReplyTo,
				CorrelationID: msg.CorrelationID,
			})
			if err != nil {
				return err
			}
			return msg.Ack(ctx)
		}, logger)

	units := []service.Unit{
		service.NewWorkerUnitWithOpts(rel, service.WorkerUnitOpts{MetricsRegisterer: rel}),
		service.NewWorkerUnit(workReceiver),
		service.NewWorkerUnit(controlReceiver),
	}
	if cfg.OpServer.Enabled {
		units = append(units, opserver.New(cfg.OpServer, logger, opserver.Opts{
			HealthChecks: map[string]opserver.HealthCheck{
				"relay": func(context.Context) error {
					if !rel.Stats().Running {
						return errors.New("relay is not running")
					}
					return nil
				},
				"bus": redisbus.Pinger{Client: client}.Ping,
			},
			Status: func() interface{} { return rel.Stats() },
		}))
	}

	logger.Info("relay configured",
		log.String("version", version.Get()),
		log.String("service_address", cfg.Relay.ServiceAddress),
		log.String("control_address", cfg.Relay.ControlAddress),
		log.Int("initial_rate", cfg.Relay.InitialRate))
	return service.NewCompositeUnit(units...), nil
}
