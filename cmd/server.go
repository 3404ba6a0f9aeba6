/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/corn-moisture/platform/config"
	"github.com/corn-moisture/platform/internal/logging"
	"github.com/corn-moisture/platform/internal/server"
	"github.com/spf13/cobra"
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Starts one of the platform services",
	Long: `Starts one of the platform services. Usage:

	moisture server users
	moisture server data
`,
}

var serverUsersCmd = &cobra.Command{
	Use:   "users",
	Short: "Starts the users/auth service",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadUsersConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
			os.Exit(1)
		}
		log := logging.NewSlogLogger(logging.New(cfg.Logging, "users-service"))

		ctx, stop := signalContext(cmd.Context())
		defer stop()

		srv, err := server.NewUsers(ctx, cfg, log)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
			os.Exit(1)
		}
		if err := srv.Run(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	},
}

var serverDataCmd = &cobra.Command{
	Use:   "data",
	Short: "Starts the prediction data service",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadDataConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
			os.Exit(1)
		}
		log := logging.NewSlogLogger(logging.New(cfg.Logging, "data-service"))

		ctx, stop := signalContext(cmd.Context())
		defer stop()

		srv, err := server.NewData(ctx, cfg, log)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
			os.Exit(1)
		}
		if err := srv.Run(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	},
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.AddCommand(serverUsersCmd)
	serverCmd.AddCommand(serverDataCmd)
}
