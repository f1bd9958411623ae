/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/josephgoksu/taskforge/internal/telemetry"
)

var telemetryCmd = &cobra.Command{
	Use:   "telemetry",
	Short: "Manage telemetry settings",
	Long: `View and manage anonymous usage telemetry.

Only operation names, durations, counts and token usage are sent. Task
content never leaves the machine. Telemetry is off until enabled.`,
}

var telemetryStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current telemetry status",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadTelemetryConfig()
		if err != nil {
			return err
		}
		if isJSON() {
			return printJSON(cfg)
		}
		if cfg.IsEnabled() {
			fmt.Println("Telemetry: enabled")
			fmt.Printf("   Anonymous ID: %s\n", cfg.AnonymousID)
			fmt.Println("   To disable: taskforge telemetry disable")
		} else {
			fmt.Println("Telemetry: disabled")
			fmt.Println("   To enable: taskforge telemetry enable")
		}
		return nil
	},
}

var telemetryEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Enable anonymous telemetry",
	RunE: func(cmd *cobra.Command, args []string) error {
		return setTelemetry(true)
	},
}

var telemetryDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Disable anonymous telemetry",
	RunE: func(cmd *cobra.Command, args []string) error {
		return setTelemetry(false)
	},
}

func init() {
	rootCmd.AddCommand(telemetryCmd)
	telemetryCmd.AddCommand(telemetryStatusCmd, telemetryEnableCmd, telemetryDisableCmd)
}

func loadTelemetryConfig() (*telemetry.Config, error) {
	cfg, err := telemetry.LoadConfig(telemetryDir())
	if err != nil {
		return nil, fmt.Errorf("failed to read telemetry status: %w", err)
	}
	return cfg, nil
}

func setTelemetry(enabled bool) error {
	cfg, err := loadTelemetryConfig()
	if err != nil {
		return err
	}
	if enabled {
		cfg.Enable()
	} else {
		cfg.Disable()
	}
	if err := cfg.Save(); err != nil {
		return fmt.Errorf("failed to save telemetry settings: %w", err)
	}
	if !isQuiet() {
		if enabled {
			fmt.Println("Telemetry enabled.")
		} else {
			fmt.Println("Telemetry disabled.")
		}
	}
	return nil
}
