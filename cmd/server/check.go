package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zzkydev/Convertify-PDF/internal/server"
	"github.com/zzkydev/Convertify-PDF/pkg"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Report which conversion engines are available",
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	report := server.Check(server.Adapters(cfg.Engines))
	if err := pkg.Print(cmd.OutOrStdout(), report); err != nil {
		return err
	}
	for _, status := range report {
		if !status.OK {
			return fmt.Errorf("engine for %s is unavailable", status.Operation)
		}
	}
	return nil
}
