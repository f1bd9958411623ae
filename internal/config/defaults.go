// Package config provides centralized configuration constants for taskforge.
// All default values should be defined here to ensure a single source of truth.
package config

import "time"

// Pipeline defaults
const (
	// DefaultScope is the task list used when no scope is named
	DefaultScope = "master"

	// DefaultSubtasks is the subtask count when neither caller nor report gives one
	DefaultSubtasks = 3

	// DefaultTaskCount is the task count requested from parse-prd
	DefaultTaskCount = 10

	// DefaultComplexityThreshold is the score at or above which expansion is recommended
	DefaultComplexityThreshold = 5

	// DefaultContextTasks is how many related tasks are gathered into prompts
	DefaultContextTasks = 5
)

// Ranker defaults
const (
	DefaultMaxResults   = 10
	DefaultRecentWindow = 72 * time.Hour
)

// Context gatherer defaults
const (
	DefaultMaxFileBytes = 64 * 1024
	DefaultTreeDepth    = 3
)

// Storage defaults
const (
	// DataDirName is the project-local data directory
	DataDirName = ".taskforge"

	// ReportsBackendSQLite keeps complexity reports in the task database
	ReportsBackendSQLite = "sqlite"

	// ReportsBackendFile keeps one JSON file per scope
	ReportsBackendFile = "file"
)
