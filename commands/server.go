package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/jtarchie/discovery/dispatch"
	"github.com/jtarchie/discovery/eventstore"
	"github.com/jtarchie/discovery/orchestra"
	"github.com/jtarchie/discovery/server"
	"github.com/jtarchie/discovery/storage"
	"github.com/jtarchie/discovery/volume"
	"github.com/samber/lo"
)

// Server runs the HTTP surface and the worker pool that drains its queue,
// sharing one in-process dispatch.Queue between them.
type Server struct {
	Port        int    `default:"8080"                  help:"Port to listen on"`
	StorageDSN  string `default:"sqlite://discovery.db" help:"Registry/run storage DSN"                         name:"storage"`
	DriverDSN   string `default:"docker://discovery"    help:"Container Executor driver DSN"                    name:"driver"`
	ObjectStore string `help:"Object store DSN for uploaded artifacts (s3://bucket?region=...&endpoint=...)"`
	VolumeBase  string `default:"/tmp/discovery-volumes" help:"Host directory runs' volumes are allocated under" name:"volume-base"`
	Workers     int    `default:"4"                     help:"Number of concurrent Task Runner workers"`
	QueueBuffer int    `default:"64"                    help:"Number of pending run requests the queue can hold" name:"queue-buffer"`
	EnvType     string `default:"PROD"                  help:"DEV disables volume cleanup after a run"          env:"ENV_TYPE"`
	NotifySinks string `help:"JSON object of eventstore.SinkConfig entries to publish run transitions to" name:"notify-sinks"`
}

func (c *Server) Run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	storageInit, ok := storage.GetFromDSN(c.StorageDSN)
	if !ok {
		return fmt.Errorf("unknown storage driver for DSN %q", c.StorageDSN)
	}

	driver, err := storageInit(c.StorageDSN, "discovery", logger)
	if err != nil {
		return fmt.Errorf("could not open storage: %w", err)
	}
	defer func() { _ = driver.Close() }()

	driverConfig, err := orchestra.ParseDriverDSN(c.DriverDSN)
	if err != nil {
		return fmt.Errorf("could not parse container driver DSN: %w", err)
	}

	orchestraInit, ok := orchestra.Get(driverConfig.Scheme)
	if !ok {
		return fmt.Errorf("unknown container driver for DSN %q", c.DriverDSN)
	}

	containerDriver, err := orchestraInit(driverConfig.Namespace, logger)
	if err != nil {
		return fmt.Errorf("could not open container driver: %w", err)
	}
	defer func() { _ = containerDriver.Close() }()

	var uploader *volume.Uploader

	if c.ObjectStore != "" {
		uploader, err = volume.NewUploader(ctx, c.ObjectStore, logger)
		if err != nil {
			return fmt.Errorf("could not open object store: %w", err)
		}
	}

	var publisher eventstore.Publisher
	if c.NotifySinks != "" {
		sinks := map[string]eventstore.SinkConfig{}
		if err := json.Unmarshal([]byte(c.NotifySinks), &sinks); err != nil {
			return fmt.Errorf("could not parse notify sinks: %w", err)
		}

		publisher = eventstore.NewGateway(sinks)
	}

	store := eventstore.NewStore(driver, publisher, logger)

	queue := dispatch.NewQueue(c.QueueBuffer)
	worker := dispatch.NewWorker(queue, store, containerDriver, uploader, c.VolumeBase, c.EnvType, logger)
	pool := dispatch.NewPool(lo.Max([]int{c.Workers, 1}), worker)

	go pool.Run(ctx)

	router := server.New(driver, queue, logger)

	go func() {
		<-ctx.Done()
		_ = router.Shutdown(context.Background())
	}()

	if err := router.Start(fmt.Sprintf(":%d", c.Port)); err != nil {
		return fmt.Errorf("server stopped: %w", err)
	}

	return nil
}
