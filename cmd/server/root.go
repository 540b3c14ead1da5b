package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/zzkydev/Convertify-PDF/internal/config"
	"github.com/zzkydev/Convertify-PDF/internal/observability"
	"github.com/zzkydev/Convertify-PDF/internal/server"
)

const serviceName = "convertify"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "convertify",
	Short: "Document conversion gateway",
	Long: `Convertify accepts uploaded documents over HTTP, runs them through a
conversion engine (PDF to DOCX, OCR, merge, images to PDF, PDF to PNG)
and streams the result back as an attachment.`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP gateway",
	RunE:  runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (YAML)")
	rootCmd.AddCommand(serveCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	logger := observability.NewLogger(observability.LogConfig{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Output:      os.Stderr,
		ServiceName: serviceName,
	})
	return cfg, logger, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx, cfg, logger); err != nil {
		logger.Error().Err(err).Msg("server stopped")
		return err
	}
	return nil
}
