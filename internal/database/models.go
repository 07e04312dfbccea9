package database

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// VideoFile is one catalogued video. file_path is the unique key; a re-scan
// of the same path replaces the row.
type VideoFile struct {
	ID              uint     `gorm:"primaryKey" json:"id"`
	FilePath        string   `gorm:"uniqueIndex;not null" json:"file_path"`
	FileName        string   `gorm:"not null" json:"file_name"`
	FileSize        uint64   `gorm:"index;not null" json:"file_size"`
	DurationSeconds *float64 `gorm:"index" json:"duration_seconds"`
	VideoCodec      string   `gorm:"index;not null;default:unknown" json:"video_codec"`
	Width           *int     `gorm:"index:idx_video_files_dimensions" json:"width"`
	Height          *int     `gorm:"index:idx_video_files_dimensions" json:"height"`
	FrameRate       *float64 `json:"frame_rate"`
	BitRate         *int64   `json:"bit_rate"`
	BitDepth        *int     `json:"bit_depth"`
	HDRFormat       string   `gorm:"index;not null;default:sdr" json:"hdr_format"`
	AudioCodec      string   `gorm:"index;not null;default:unknown" json:"audio_codec"`
	AudioChannels   *int     `json:"audio_channels"`
	IsAtmos         bool     `gorm:"not null;default:false" json:"is_atmos"`
	IsDTSX          bool     `gorm:"column:is_dtsx;not null;default:false" json:"is_dtsx"`
	ContainerFormat string   `gorm:"index;not null;default:unknown" json:"container_format"`
	ScanSessionID   *string  `gorm:"index" json:"scan_session_id"`
	ScannedAt       time.Time `gorm:"not null" json:"scanned_at"`

	// Added by the v2 migration.
	FileHash          string `gorm:"index" json:"file_hash,omitempty"`
	IsCorrupted       bool   `gorm:"not null;default:false" json:"is_corrupted"`
	CorruptionDetails string `json:"corruption_details,omitempty"`
}

// SessionStatus enumerates scan session states.
type SessionStatus string

const (
	SessionInProgress SessionStatus = "in_progress"
	SessionPaused     SessionStatus = "paused"
	SessionCompleted  SessionStatus = "completed"
	SessionCancelled  SessionStatus = "cancelled"
	SessionFailed     SessionStatus = "failed"
)

// IsTerminal reports whether the status is a terminal state.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionCompleted || s == SessionCancelled || s == SessionFailed
}

// PathList is a JSON-serialized list of file paths stored in a TEXT column.
type PathList []string

// Value implements driver.Valuer.
func (p PathList) Value() (driver.Value, error) {
	if p == nil {
		p = PathList{}
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (p *PathList) Scan(value interface{}) error {
	if value == nil {
		*p = PathList{}
		return nil
	}
	switch v := value.(type) {
	case string:
		return json.Unmarshal([]byte(v), p)
	case []byte:
		return json.Unmarshal(v, p)
	default:
		return fmt.Errorf("unsupported type for PathList: %T", value)
	}
}

// ScanSession is one invocation of the scan engine; the unit of crash
// recovery. pending_files is persisted in the row so a session can be
// rehydrated without the checkpoint file.
type ScanSession struct {
	ID               string        `gorm:"primaryKey" json:"id"`
	FolderPath       string        `gorm:"not null" json:"folder_path"`
	StartedAt        time.Time     `gorm:"not null" json:"started_at"`
	CompletedAt      *time.Time    `json:"completed_at"`
	TotalFiles       int           `gorm:"not null;default:0" json:"total_files"`
	ProcessedFiles   int           `gorm:"not null;default:0" json:"processed_files"`
	Status           SessionStatus `gorm:"not null;default:in_progress" json:"status"`
	LastCheckpointAt *time.Time    `json:"last_checkpoint_at"`
	PendingFiles     PathList      `gorm:"type:text" json:"pending_files"`
}
