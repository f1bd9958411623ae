package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/josephgoksu/taskforge/internal/config"
)

const (
	configName = ".taskforge"
	envPrefix  = "TASKFORGE"
)

// InitConfig reads in config file and ENV variables if set.
func InitConfig() {
	// A missing .env is fine.
	_ = godotenv.Load()

	viper.SetEnvPrefix(envPrefix) // e.g., TASKFORGE_VERBOSE
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// ./.taskforge.yaml wins over $HOME/.taskforge/config.yaml.
		if _, err := os.Stat(configName + ".yaml"); err == nil {
			viper.AddConfigPath(".")
			viper.SetConfigName(configName)
		} else if dir, err := config.GetGlobalConfigDir(); err == nil {
			viper.AddConfigPath(dir)
			viper.SetConfigName("config")
		}
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	} else {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound):
			if viper.GetBool("verbose") {
				fmt.Fprintln(os.Stderr, "No config file found. Using defaults and environment variables.")
			}
		case cfgFile != "" && os.IsNotExist(err):
			fmt.Fprintln(os.Stderr, "Error: Specified config file not found:", cfgFile)
		default:
			fmt.Fprintln(os.Stderr, "Error reading config file:", viper.ConfigFileUsed(), "-", err)
		}
	}

	setDefaults()
}

// setDefaults registers the documented defaults so `viper.Get*` and env
// overrides agree with the internal/config loaders.
func setDefaults() {
	viper.SetDefault("reports.backend", config.ReportsBackendSQLite)
	viper.SetDefault("pipeline.defaultScope", config.DefaultScope)
	viper.SetDefault("pipeline.defaultSubtasks", config.DefaultSubtasks)
	viper.SetDefault("pipeline.defaultTaskCount", config.DefaultTaskCount)
	viper.SetDefault("pipeline.complexityThreshold", config.DefaultComplexityThreshold)
	viper.SetDefault("pipeline.contextTasks", config.DefaultContextTasks)
	viper.SetDefault("ranker.maxResults", config.DefaultMaxResults)
	viper.SetDefault("log.level", "warn")
}

// telemetryDir keeps telemetry settings next to the global config.
func telemetryDir() string {
	dir, err := config.GetGlobalConfigDir()
	if err != nil {
		return filepath.Join(".", config.DataDirName)
	}
	return dir
}
