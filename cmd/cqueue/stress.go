package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/huynhanx03/go-cqueue/pkg/datastructs/queue"
	"github.com/huynhanx03/go-cqueue/pkg/logger"
	"github.com/huynhanx03/go-cqueue/pkg/server"
	"github.com/huynhanx03/go-cqueue/pkg/settings"
	"github.com/huynhanx03/go-cqueue/pkg/stress"
)

var errRunFailed = errors.New("stress run lost or duplicated items")

type stressOptions struct {
	producers int
	consumers int
	items     int
	mode      string
	batchSize int
	nodeCache int
	serve     bool
}

func newStressCmd(root *rootOptions) *cobra.Command {
	opts := &stressOptions{}

	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Run producers and consumers through the process-wide queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			opts.apply(cmd, root, cfg)
			if err := settings.Validate(cfg); err != nil {
				return err
			}
			return runStress(cmd.Context(), cfg, opts.serve)
		},
	}

	f := cmd.Flags()
	f.IntVarP(&opts.producers, "producers", "p", 0, "override stress.producers")
	f.IntVarP(&opts.consumers, "consumers", "n", 0, "override stress.consumers")
	f.IntVarP(&opts.items, "items", "i", 0, "override stress.items_per_producer")
	f.StringVarP(&opts.mode, "mode", "m", "", "override stress.mode (blocking|batch)")
	f.IntVar(&opts.batchSize, "batch-size", 0, "override stress.batch_size")
	f.IntVar(&opts.nodeCache, "node-cache", 0, "override queue.node_cache")
	f.BoolVar(&opts.serve, "serve", false, "expose /stats on server.host:server.port during the run")
	return cmd
}

// apply copies explicitly set flags over the loaded configuration.
func (o *stressOptions) apply(cmd *cobra.Command, root *rootOptions, cfg *settings.Config) {
	f := cmd.Flags()
	if root.logLevel != "" {
		cfg.Logger.LogLevel = root.logLevel
	}
	if f.Changed("producers") {
		cfg.Stress.Producers = o.producers
	}
	if f.Changed("consumers") {
		cfg.Stress.Consumers = o.consumers
	}
	if f.Changed("items") {
		cfg.Stress.ItemsPerProducer = o.items
	}
	if f.Changed("mode") {
		cfg.Stress.Mode = o.mode
	}
	if f.Changed("batch-size") {
		cfg.Stress.BatchSize = o.batchSize
	}
	if f.Changed("node-cache") {
		cfg.Queue.NodeCache = o.nodeCache
	}
}

func runStress(ctx context.Context, cfg *settings.Config, serve bool) error {
	log, err := logger.New(cfg.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := queue.Init(queue.WithNodeCache[any](cfg.Queue.NodeCache)); err != nil {
		return errors.Wrap(err, "failed to init queue")
	}

	if serve {
		if cfg.Server.Mode != "" {
			gin.SetMode(cfg.Server.Mode)
		}
		srv := server.New(cfg.Server, queue.Default(), log)
		srv.Start()
		defer func() {
			if err := srv.Stop(context.Background()); err != nil {
				log.Warn("stats server shutdown", zap.Error(err))
			}
		}()
	}

	report, runErr := stress.Run(ctx, queue.Default(), cfg.Stress, log)

	if err := queue.Shutdown(); err != nil {
		log.Error("queue shutdown", zap.Error(err))
	}
	if runErr != nil {
		return errors.Wrap(runErr, "stress run")
	}

	log.Info("stress report",
		zap.String("mode", report.Mode),
		zap.Uint64("produced", report.Produced),
		zap.Uint64("received", report.Received),
		zap.Uint64("duplicates", report.Duplicates),
		zap.Uint64("missing", report.Missing),
		zap.Uint64("size", report.Queue.Size),
		zap.Uint64("visited", report.Queue.Visited),
		zap.Duration("elapsed", report.Elapsed),
		zap.Bool("ok", report.OK()))

	if !report.OK() {
		return errRunFailed
	}
	return nil
}
