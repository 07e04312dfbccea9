// Package checkpoint persists durable scan state outside the database so an
// interrupted scan can resume after a crash or restart.
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bytePatrol/Media-Folder-Visualizer/internal/utils"
	"github.com/hashicorp/go-hclog"
)

// FileName is the well-known checkpoint file name inside the data directory.
const FileName = "scan_checkpoint.json"

// Checkpoint is the serialized recovery state for one scan session.
type Checkpoint struct {
	SessionID        string    `json:"session_id"`
	FolderPath       string    `json:"folder_path"`
	TotalFiles       int       `json:"total_files"`
	ProcessedFiles   int       `json:"processed_files"`
	PendingFilePaths []string  `json:"pending_file_paths"`
	SavedAt          time.Time `json:"saved_at"`
}

// ProgressPercentage returns processed/total as a percentage.
func (c *Checkpoint) ProgressPercentage() float64 {
	if c.TotalFiles == 0 {
		return 0
	}
	return float64(c.ProcessedFiles) / float64(c.TotalFiles) * 100
}

// Store reads and writes the checkpoint file. Writes are atomic
// (write-temp-then-rename) so a crash never leaves a torn file.
type Store struct {
	path   string
	logger hclog.Logger
}

// NewStore creates a checkpoint store rooted in dataDir.
func NewStore(dataDir string, logger hclog.Logger) *Store {
	return &Store{
		path:   filepath.Join(dataDir, FileName),
		logger: logger,
	}
}

// Path returns the checkpoint file location.
func (s *Store) Path() string {
	return s.path
}

// Exists reports whether a checkpoint file is present.
func (s *Store) Exists() bool {
	info, err := os.Stat(s.path)
	return err == nil && !info.IsDir()
}

// Save atomically rewrites the checkpoint file.
func (s *Store) Save(cp *Checkpoint) error {
	if cp.SavedAt.IsZero() {
		cp.SavedAt = time.Now()
	}

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	if err := utils.WriteFileAtomic(s.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	return nil
}

// Load reads the checkpoint file. Returns (nil, nil) when none exists.
func (s *Store) Load() (*Checkpoint, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	return &cp, nil
}

// Delete removes the checkpoint file. Missing files are not an error.
func (s *Store) Delete() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}

// PruneStale deletes the checkpoint if it is older than maxAge and returns
// the stale checkpoint so the caller can mark its session failed.
func (s *Store) PruneStale(maxAge time.Duration) (*Checkpoint, error) {
	cp, err := s.Load()
	if err != nil || cp == nil {
		return nil, err
	}
	if time.Since(cp.SavedAt) <= maxAge {
		return nil, nil
	}

	s.logger.Info("pruning stale checkpoint", "session_id", cp.SessionID, "saved_at", cp.SavedAt)
	if err := s.Delete(); err != nil {
		return nil, err
	}
	return cp, nil
}
