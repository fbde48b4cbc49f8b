package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	_ "go.uber.org/automaxprocs"
	"golang.org/x/sync/errgroup"
)

const (
	commandName = "tier-nearest-scooter"
	commandDesc = `Polls the Tier vehicle API for scooters around a fixed location and
exposes the distance to the nearest one as a sensor reading over HTTP,
websocket, MQTT and a GTFS-Realtime feed.`
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := NewOptions()
	v := viper.New()

	cmd := &cobra.Command{
		Use:          commandName,
		Short:        "Distance to the nearest Tier scooter",
		Long:         commandDesc,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.Load(v, cmd.Flags()); err != nil {
				return err
			}
			if err := opts.Complete(); err != nil {
				return err
			}
			if err := opts.Validate(); err != nil {
				return err
			}

			logger, err := newLogger(opts.Log)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, opts, logger)
		},
	}

	fs := cmd.Flags()
	for _, set := range opts.FlagSets() {
		fs.AddFlagSet(set)
	}
	return cmd
}

func run(ctx context.Context, opts *Options, log Logger) error {
	client := NewTierClient(opts.Tier.BaseURL, opts.APIKey, log.WithName("tier"))
	sensor := NewNearestScooterSensor(client, opts.Name, opts.Location(), opts.Radius,
		WithSensorLogger(log.WithName("sensor").WithValues("sensor", opts.Name)))

	hub := newHub(sensor.Reading, log.WithName("ws"))
	publishers := []ReadingPublisher{hub}
	if opts.MQTT.Enabled() {
		pub, err := newMQTTPublisher(opts.MQTT, log.WithName("mqtt"))
		if err != nil {
			return err
		}
		defer pub.Close()
		publishers = append(publishers, pub)
	}
	poll := newPoller(sensor, opts.Tier.ScanInterval, log.WithName("poller"), publishers...)

	srv := &http.Server{
		Addr:              opts.HTTP.Addr,
		Handler:           newRouter(sensor, hub, log.WithName("http")),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return poll.run(gctx)
	})
	g.Go(func() error {
		log.Info("server starting", "addr", srv.Addr, "location", opts.Location(), "radius", opts.Radius)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown initiated...")
		hub.closeAll()

		sctx, cancel := context.WithTimeout(context.Background(), opts.HTTP.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		log.Info("HTTP server shut down successfully")
		return nil
	})
	return g.Wait()
}
