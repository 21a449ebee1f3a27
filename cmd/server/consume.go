package main

import (
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/iliyamo/book-panel/internal/queue"
)

var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Append order events from the broker to the event log",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, done, err := setup()
		if err != nil {
			return err
		}
		defer done()

		out := &lumberjack.Logger{
			Filename:   cfg.AMQP.EventLog,
			MaxSize:    cfg.Log.MaxSize,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAge:     cfg.Log.MaxAge,
			Compress:   cfg.Log.Compress,
		}
		defer out.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		c := &queue.Consumer{
			URL:    cfg.AMQP.URL,
			Queues: []string{queue.OrderPlacedQueue, queue.OrderStatusChangedQueue},
			Out:    out,
			Log:    log,
		}
		log.Info("consuming order events", zap.String("file", cfg.AMQP.EventLog))
		if err := c.Run(ctx); err != nil && !errors.Is(err, ctx.Err()) {
			return err
		}
		return nil
	},
}
