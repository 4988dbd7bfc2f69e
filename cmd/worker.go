/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/reelvault/apiserver/config"
	"github.com/reelvault/apiserver/internal/mq"
	"github.com/reelvault/apiserver/internal/worker"
	"github.com/spf13/cobra"
)

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consumes catalogue events",
	Long: `Subscribes to the catalogue event channel and logs every event. Usage:

	reelvault worker
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}
		if cfg.MQ.Backend == "" {
			return errors.New("MQ_BACKEND is required for the worker")
		}
		log := newLogger(cfg)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		queue, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		defer queue.Close()

		return worker.NewEventLogger(queue, cfg.MQ.Channel, log).Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
