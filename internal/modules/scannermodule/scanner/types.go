// Package scanner implements the scan engine: a bounded-concurrency pipeline
// that discovers video files, probes them, parses metadata, batches catalog
// writes, and supports pause/resume/cancel with durable checkpointing.
package scanner

import (
	"time"

	"github.com/bytePatrol/Media-Folder-Visualizer/internal/checkpoint"
	"github.com/bytePatrol/Media-Folder-Visualizer/internal/database"
	"github.com/bytePatrol/Media-Folder-Visualizer/internal/probe"
)

// State is the engine lifecycle state.
type State string

const (
	StateIdle      State = "idle"
	StateScanning  State = "scanning"
	StatePaused    State = "paused"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
	StateFailed    State = "failed"
)

// LogLevel classifies scan log entries.
type LogLevel string

const (
	LogInfo    LogLevel = "info"
	LogSuccess LogLevel = "success"
	LogWarning LogLevel = "warning"
	LogError   LogLevel = "error"
)

// Progress is one progress emission. current_file is the most recently
// finished file; it is empty until the first file of a scan or resume finishes.
type Progress struct {
	Total       int    `json:"total"`
	Processed   int    `json:"processed"`
	CurrentFile string `json:"current_file,omitempty"`
	State       State  `json:"state"`
}

// LogEntry is one structured scan log line. Entries carrying a file path are
// actionable by clients (reveal-in-filesystem affordances).
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     LogLevel  `json:"level"`
	Message   string    `json:"message"`
	FilePath  string    `json:"file_path,omitempty"`
}

// Completion is the single terminal summary for a session.
type Completion struct {
	Total      int           `json:"total"`
	Processed  int           `json:"processed"`
	Duration   time.Duration `json:"duration"`
	FolderPath string        `json:"folder_path"`
	State      State         `json:"state"`
}

// RecoveryInfo describes a resumable checkpoint found at startup.
type RecoveryInfo struct {
	Checkpoint         *checkpoint.Checkpoint `json:"checkpoint"`
	RemainingFileCount int                    `json:"remaining_file_count"`
	FolderPath         string                 `json:"folder_path"`
	ProgressPercentage float64                `json:"progress_percentage"`
}

// Prober abstracts the probe runner so tests can substitute a stub.
type Prober interface {
	Probe(path string) (*probe.Output, error)
}

// Status is a point-in-time snapshot of the engine for clients.
type Status struct {
	State       State   `json:"state"`
	SessionID   string  `json:"session_id,omitempty"`
	FolderPath  string  `json:"folder_path,omitempty"`
	Total       int     `json:"total"`
	Processed   int     `json:"processed"`
	Pending     int     `json:"pending"`
	InFlight    int     `json:"in_flight"`
	ProgressPct float64 `json:"progress_pct"`
}

// workerResult is what a probe worker hands back to the engine loop.
type workerResult struct {
	path   string
	record *database.VideoFile
	err    error
}
