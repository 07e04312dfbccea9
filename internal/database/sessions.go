package database

import (
	"time"

	"github.com/google/uuid"
)

// CreateSession persists a new scan session in in_progress state.
func (s *Store) CreateSession(folderPath string, pendingFiles []string) (*ScanSession, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotInitialized
	}

	session := &ScanSession{
		ID:           uuid.NewString(),
		FolderPath:   folderPath,
		StartedAt:    time.Now(),
		TotalFiles:   len(pendingFiles),
		Status:       SessionInProgress,
		PendingFiles: pendingFiles,
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.db.Create(session).Error; err != nil {
		return nil, err
	}
	return session, nil
}

// GetSession fetches a session by ID.
func (s *Store) GetSession(id string) (*ScanSession, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotInitialized
	}
	var session ScanSession
	if err := s.db.First(&session, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

// UpdateSession saves all fields of a session row.
func (s *Store) UpdateSession(session *ScanSession) error {
	if s == nil || s.db == nil {
		return ErrNotInitialized
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.db.Save(session).Error
}

// MarkSessionStatus transitions a session, stamping completed_at on terminal
// states.
func (s *Store) MarkSessionStatus(id string, status SessionStatus) error {
	if s == nil || s.db == nil {
		return ErrNotInitialized
	}

	updates := map[string]interface{}{"status": status}
	if status.IsTerminal() {
		now := time.Now()
		updates["completed_at"] = &now
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.db.Model(&ScanSession{}).Where("id = ?", id).Updates(updates).Error
}

// ListSessions returns sessions newest first.
func (s *Store) ListSessions(limit int) ([]ScanSession, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotInitialized
	}
	query := s.db.Order("started_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var sessions []ScanSession
	if err := query.Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

// DeleteSession removes a session row; its videos keep existing with their
// scan_session_id cleared.
func (s *Store) DeleteSession(id string) error {
	if s == nil || s.db == nil {
		return ErrNotInitialized
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.db.Model(&VideoFile{}).Where("scan_session_id = ?", id).
		Update("scan_session_id", nil).Error; err != nil {
		return err
	}
	return s.db.Delete(&ScanSession{}, "id = ?", id).Error
}
