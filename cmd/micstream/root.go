package main

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/petems/micstream/internal/aggregate"
	"github.com/petems/micstream/internal/app"
	"github.com/petems/micstream/internal/capture"
	"github.com/petems/micstream/internal/config"
	"github.com/petems/micstream/internal/hardware"
	"github.com/petems/micstream/internal/logging"
)

type rootFlags struct {
	configPath string
	backend    string
	logLevel   string
	device     string
}

func newRootCmd() *cobra.Command {
	var flags rootFlags

	cmd := &cobra.Command{
		Use:   "micstream",
		Short: "micstream - microphone capture and multi-output devices",
		Long:  "micstream streams microphone audio to local clients and manages aggregate output devices",
		Example: `  micstream devices
  micstream serve --listen 127.0.0.1:8765
  micstream monitor --args 0,44100,16,2
  micstream aggregate --master BuiltInSpeakerDevice --second AirPods`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "Path to config file (default: "+config.Path()+")")
	cmd.PersistentFlags().StringVar(&flags.backend, "backend", "", "Audio backend: portaudio or fake (overrides config)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level (overrides config)")
	cmd.PersistentFlags().StringVar(&flags.device, "device", "", "Input device UID (overrides config)")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newDevicesCmd(&flags))
	cmd.AddCommand(newServeCmd(&flags))
	cmd.AddCommand(newMonitorCmd(&flags))
	cmd.AddCommand(newAggregateCmd(&flags))
	cmd.AddCommand(newPermissionCmd(&flags))
	cmd.AddCommand(newTrayCmd(&flags))

	return cmd
}

// env is everything a command needs to talk to the hardware.
type env struct {
	cfg        *config.Config
	log        zerolog.Logger
	host       *hardware.Host
	capture    *capture.Manager
	aggregates *aggregate.Manager
	app        *app.App
}

func (f *rootFlags) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if f.configPath != "" {
		cfg, err = config.LoadFrom(f.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if f.backend != "" {
		cfg.Audio.Backend = f.backend
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	if f.device != "" {
		cfg.Audio.DeviceID = f.device
	}
	return cfg, nil
}

func (f *rootFlags) open() (*env, error) {
	cfg, err := f.loadConfig()
	if err != nil {
		return nil, err
	}
	log := logging.NewWithLevel(cfg.LogLevel)

	host, err := hardware.Open(cfg.Audio.Backend, log)
	if err != nil {
		return nil, err
	}

	rt := &env{
		cfg:        cfg,
		log:        log,
		host:       host,
		capture:    capture.NewManager(host.Capturer, cfg.Audio.QueueSize, log),
		aggregates: aggregate.New(host.Aggregator, host.Registry, cfg.Aggregate.Name, log),
	}
	rt.app = app.New(app.Config{
		Registry:   host.Registry,
		Capture:    rt.capture,
		Aggregates: rt.aggregates,
		Config:     cfg,
		Logger:     log,
	})
	return rt, nil
}

// close stops capture, destroys aggregates this process created and
// releases the backend.
func (rt *env) close() error {
	shutdownErr := rt.app.Shutdown(context.Background())
	return errors.Join(shutdownErr, rt.host.Close())
}
