package scanner

import (
	"errors"
	"os"
	"time"

	"github.com/bytePatrol/Media-Folder-Visualizer/internal/checkpoint"
	"github.com/bytePatrol/Media-Folder-Visualizer/internal/database"
)

// ErrNoRecovery is returned when no usable checkpoint exists.
var ErrNoRecovery = errors.New("scanner: no recoverable checkpoint")

// CheckRecovery inspects the checkpoint store at startup. Stale checkpoints
// are pruned (and their sessions marked failed); a live checkpoint is offered
// to the client only when its folder still resolves and at least one pending
// file still exists on disk.
func (e *Engine) CheckRecovery(staleAge time.Duration) (*RecoveryInfo, error) {
	if staleAge <= 0 {
		staleAge = 24 * time.Hour
	}

	if stale, err := e.checkpoints.PruneStale(staleAge); err != nil {
		return nil, err
	} else if stale != nil {
		if err := e.store.MarkSessionStatus(stale.SessionID, database.SessionFailed); err != nil {
			e.logger.Warn("failed to mark stale session failed", "session_id", stale.SessionID, "error", err)
		}
		return nil, nil
	}

	cp, err := e.checkpoints.Load()
	if err != nil || cp == nil {
		return nil, err
	}

	if info, err := os.Stat(cp.FolderPath); err != nil || !info.IsDir() {
		e.logger.Info("checkpoint folder no longer resolves, discarding", "folder", cp.FolderPath)
		e.discardCheckpoint(cp)
		return nil, nil
	}

	anyExists := false
	for _, path := range cp.PendingFilePaths {
		if _, err := os.Stat(path); err == nil {
			anyExists = true
			break
		}
	}
	if !anyExists {
		e.logger.Info("no pending checkpoint files remain on disk, discarding", "folder", cp.FolderPath)
		e.discardCheckpoint(cp)
		return nil, nil
	}

	return &RecoveryInfo{
		Checkpoint:         cp,
		RemainingFileCount: len(cp.PendingFilePaths),
		FolderPath:         cp.FolderPath,
		ProgressPercentage: cp.ProgressPercentage(),
	}, nil
}

// AcceptRecovery resumes the checkpointed scan.
func (e *Engine) AcceptRecovery() error {
	cp, err := e.checkpoints.Load()
	if err != nil {
		return err
	}
	if cp == nil {
		return ErrNoRecovery
	}
	return e.ResumeFromCheckpoint(cp)
}

// DismissRecovery deletes the checkpoint and marks its session failed.
func (e *Engine) DismissRecovery() error {
	cp, err := e.checkpoints.Load()
	if err != nil {
		return err
	}
	if cp == nil {
		return ErrNoRecovery
	}
	e.discardCheckpoint(cp)
	return nil
}

func (e *Engine) discardCheckpoint(cp *checkpoint.Checkpoint) {
	if err := e.checkpoints.Delete(); err != nil {
		e.logger.Warn("failed to delete checkpoint", "error", err)
	}
	if err := e.store.MarkSessionStatus(cp.SessionID, database.SessionFailed); err != nil {
		e.logger.Warn("failed to mark session failed", "session_id", cp.SessionID, "error", err)
	}
}
