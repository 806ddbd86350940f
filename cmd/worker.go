/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/accounthub/apiserver/config"
	"github.com/accounthub/apiserver/internal/events"
	"github.com/accounthub/apiserver/internal/logger"
	"github.com/accounthub/apiserver/internal/storage"
	"github.com/accounthub/apiserver/internal/worker"
	"github.com/spf13/cobra"
)

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Starts the user-event cleanup worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		log := logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: cfg.LogPretty})

		ctx := cmd.Context()

		bus, err := events.NewBusFromConfig(ctx, cfg.Events)
		if err != nil {
			return fmt.Errorf("init events backend: %w", err)
		}
		if bus == nil {
			return errors.New("EVENTS_BACKEND is required for the worker")
		}
		defer func() {
			_ = bus.Close()
		}()

		objects, err := storage.NewFromConfig(ctx, cfg.Storage)
		if err != nil {
			return fmt.Errorf("init storage backend: %w", err)
		}

		if err := worker.New(bus, objects, log).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "worker error: %v\n", err)
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
