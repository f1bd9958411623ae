package config

import (
	"time"

	"github.com/josephgoksu/taskforge/internal/retrieval"
	"github.com/spf13/viper"
)

// PipelineConfig holds the defaults applied by pipeline operations.
type PipelineConfig struct {
	DefaultScope        string
	DefaultSubtasks     int
	DefaultTaskCount    int
	ComplexityThreshold int
	ContextTasks        int
}

// RankerConfig holds the relevance ranker settings.
type RankerConfig struct {
	MaxResults   int
	RecentWindow time.Duration
	Weights      retrieval.Weights
}

// ContextConfig bounds what the context gatherer reads.
type ContextConfig struct {
	Root         string
	MaxFileBytes int64
	TreeDepth    int
}

// DefaultPipelineConfig returns the default pipeline configuration.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		DefaultScope:        DefaultScope,
		DefaultSubtasks:     DefaultSubtasks,
		DefaultTaskCount:    DefaultTaskCount,
		ComplexityThreshold: DefaultComplexityThreshold,
		ContextTasks:        DefaultContextTasks,
	}
}

// LoadPipelineConfig loads pipeline configuration from Viper with defaults.
func LoadPipelineConfig() PipelineConfig {
	defaults := DefaultPipelineConfig()

	cfg := PipelineConfig{
		DefaultScope:        getStringWithDefault("pipeline.defaultScope", defaults.DefaultScope),
		DefaultSubtasks:     getIntWithDefault("pipeline.defaultSubtasks", defaults.DefaultSubtasks),
		DefaultTaskCount:    getIntWithDefault("pipeline.defaultTaskCount", defaults.DefaultTaskCount),
		ComplexityThreshold: getIntWithDefault("pipeline.complexityThreshold", defaults.ComplexityThreshold),
		ContextTasks:        getIntWithDefault("pipeline.contextTasks", defaults.ContextTasks),
	}

	// Scores live on 1..10.
	if cfg.ComplexityThreshold < 1 || cfg.ComplexityThreshold > 10 {
		cfg.ComplexityThreshold = defaults.ComplexityThreshold
	}
	if cfg.DefaultSubtasks < 1 {
		cfg.DefaultSubtasks = defaults.DefaultSubtasks
	}
	if cfg.DefaultScope == "" {
		cfg.DefaultScope = defaults.DefaultScope
	}
	return cfg
}

// LoadRankerConfig loads ranker configuration from Viper with defaults.
func LoadRankerConfig() RankerConfig {
	w := retrieval.DefaultWeights
	return RankerConfig{
		MaxResults:   getIntWithDefault("ranker.maxResults", DefaultMaxResults),
		RecentWindow: getDurationWithDefault("ranker.recentWindow", DefaultRecentWindow),
		Weights: retrieval.Weights{
			Overlap:  getFloat64WithDefault("ranker.weights.overlap", w.Overlap),
			Recency:  getFloat64WithDefault("ranker.weights.recency", w.Recency),
			Category: getFloat64WithDefault("ranker.weights.category", w.Category),
			Fuzzy:    getFloat64WithDefault("ranker.weights.fuzzy", w.Fuzzy),
		},
	}
}

// LoadContextConfig loads context gatherer configuration from Viper with defaults.
func LoadContextConfig() ContextConfig {
	return ContextConfig{
		Root:         getStringWithDefault("context.root", "."),
		MaxFileBytes: int64(getIntWithDefault("context.maxFileBytes", DefaultMaxFileBytes)),
		TreeDepth:    getIntWithDefault("context.treeDepth", DefaultTreeDepth),
	}
}

// ReportsBackend returns where complexity reports are kept: "sqlite" or "file".
func ReportsBackend() string {
	switch b := getStringWithDefault("reports.backend", ReportsBackendSQLite); b {
	case ReportsBackendFile:
		return b
	default:
		return ReportsBackendSQLite
	}
}

// Helper functions for Viper with defaults

func getFloat64WithDefault(key string, defaultVal float64) float64 {
	if viper.IsSet(key) {
		return viper.GetFloat64(key)
	}
	return defaultVal
}

func getIntWithDefault(key string, defaultVal int) int {
	if viper.IsSet(key) {
		return viper.GetInt(key)
	}
	return defaultVal
}

func getStringWithDefault(key string, defaultVal string) string {
	if viper.IsSet(key) {
		return viper.GetString(key)
	}
	return defaultVal
}

func getDurationWithDefault(key string, defaultVal time.Duration) time.Duration {
	if viper.IsSet(key) {
		if d := viper.GetDuration(key); d > 0 {
			return d
		}
	}
	return defaultVal
}
