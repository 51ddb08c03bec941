package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/Noofbiz/strikes/store"
	"github.com/Noofbiz/strikes/strikes"
)

// Version is the application version.
const Version = "0.1.0"

var (
	// DB is the optional run registry shared by subcommands.
	DB *store.Store
	// dbURL is the connection string; empty disables the registry.
	dbURL string
	// table is the strike enumeration used by every command.
	table = strikes.Default()
)

var rootCmd = &cobra.Command{
	Use:           "strikes",
	Short:         "Train and evaluate an LSTM boxing strike classifier from pose keypoints",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if dbURL == "" {
			dbURL = os.Getenv("STRIKES_DATABASE_URL")
		}
		if dbURL == "" {
			return nil
		}
		var err error
		DB, err = store.New(cmd.Context(), dbURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		klog.Infof("Recording runs in PostgreSQL")
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if DB != nil {
			// the command context may already be cancelled
			DB.Close(context.Background())
		}
	},
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer klog.Flush()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		klog.Flush()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbURL, "db", "", "PostgreSQL connection string for the run registry (default: $STRIKES_DATABASE_URL, disabled if empty)")

	klogFlags := flag.NewFlagSet("klog", flag.ExitOnError)
	klog.InitFlags(klogFlags)
	rootCmd.PersistentFlags().AddGoFlagSet(klogFlags)
}
