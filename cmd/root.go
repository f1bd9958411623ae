/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/josephgoksu/taskforge/internal/config"
	"github.com/josephgoksu/taskforge/internal/crashlog"
)

var (
	// cfgFile is the path to the configuration file.
	cfgFile string
	// version is the application version, overridden at build time.
	version = "0.1.0"
)

// crashReporter writes a crash log when a command panics.
var crashReporter = crashlog.New(afero.NewOsFs(), filepath.Join(config.DataDirName, crashlog.DirName), GetVersion())

// errReported marks an error that has already been written to the user.
var errReported = errors.New("error already reported")

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "taskforge",
	Short: "Turn requirement documents into dependency-ordered task graphs",
	Long: `taskforge turns a requirements document into a numbered, dependency-ordered
task list, breaks tasks into subtasks, scores their complexity and keeps the
dependency graph acyclic.

Tasks live in scopes (default "master"). Every command prints a
{success, data|error} envelope with --json.`,
	Version:       GetVersion(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		crashReporter.SetDir(filepath.Join(config.GetDataDir(), crashlog.DirName))
		crashReporter.SetCommand(cmd.CommandPath())
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	defer crashReporter.Recover()
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

// GetVersion returns the application version.
func GetVersion() string {
	return version
}

func init() {
	cobra.OnInitialize(InitConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./.taskforge.yaml or $HOME/.taskforge/config.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "suppress progress output")
	rootCmd.PersistentFlags().Bool("json", false, "print the result envelope as JSON")
	rootCmd.PersistentFlags().StringP("scope", "s", "", "task scope (default from pipeline.defaultScope)")

	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("scope", rootCmd.PersistentFlags().Lookup("scope"))
}
