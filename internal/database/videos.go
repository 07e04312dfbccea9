package database

import (
	"fmt"
	"strings"

	"github.com/bytePatrol/Media-Folder-Visualizer/internal/mediainfo"
	"gorm.io/gorm/clause"
)

// InsertVideo inserts a single record.
func (s *Store) InsertVideo(video *VideoFile) error {
	if s == nil || s.db == nil {
		return ErrNotInitialized
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.db.Create(video).Error
}

// UpsertVideo inserts or replaces on file_path conflict.
func (s *Store) UpsertVideo(video *VideoFile) error {
	return s.BatchUpsertVideos([]*VideoFile{video})
}

// BatchUpsertVideos writes a batch in one transaction, replacing rows whose
// file_path already exists. Insertions within the batch apply atomically.
func (s *Store) BatchUpsertVideos(videos []*VideoFile) error {
	if s == nil || s.db == nil {
		return ErrNotInitialized
	}
	if len(videos) == 0 {
		return nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "file_path"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"file_name", "file_size", "duration_seconds", "video_codec",
			"width", "height", "frame_rate", "bit_rate", "bit_depth",
			"hdr_format", "audio_codec", "audio_channels", "is_atmos",
			"is_dtsx", "container_format", "scan_session_id", "scanned_at",
		}),
	}).Create(&videos).Error
}

// UpdateVideo saves all fields of an existing record.
func (s *Store) UpdateVideo(video *VideoFile) error {
	if s == nil || s.db == nil {
		return ErrNotInitialized
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.db.Save(video).Error
}

// SetCorruption stores an integrity verdict on a record.
func (s *Store) SetCorruption(id uint, corrupted bool, details string) error {
	if s == nil || s.db == nil {
		return ErrNotInitialized
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.db.Model(&VideoFile{}).Where("id = ?", id).Updates(map[string]interface{}{
		"is_corrupted":       corrupted,
		"corruption_details": details,
	}).Error
}

// SetFileHash stores a computed content hash on a record.
func (s *Store) SetFileHash(id uint, hash string) error {
	if s == nil || s.db == nil {
		return ErrNotInitialized
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.db.Model(&VideoFile{}).Where("id = ?", id).Update("file_hash", hash).Error
}

// DeleteVideo removes a record by ID.
func (s *Store) DeleteVideo(id uint) error {
	if s == nil || s.db == nil {
		return ErrNotInitialized
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.db.Delete(&VideoFile{}, id).Error
}

// DeleteVideoByPath removes a record by its unique path.
func (s *Store) DeleteVideoByPath(path string) error {
	if s == nil || s.db == nil {
		return ErrNotInitialized
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.db.Where("file_path = ?", path).Delete(&VideoFile{}).Error
}

// DeleteVideosBySession removes the records produced by one session.
func (s *Store) DeleteVideosBySession(sessionID string) error {
	if s == nil || s.db == nil {
		return ErrNotInitialized
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.db.Where("scan_session_id = ?", sessionID).Delete(&VideoFile{}).Error
}

// DeleteAllVideos empties the catalog.
func (s *Store) DeleteAllVideos() error {
	if s == nil || s.db == nil {
		return ErrNotInitialized
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.db.Exec("DELETE FROM video_files").Error
}

// GetVideo fetches one record by ID.
func (s *Store) GetVideo(id uint) (*VideoFile, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotInitialized
	}
	var video VideoFile
	if err := s.db.First(&video, id).Error; err != nil {
		return nil, err
	}
	return &video, nil
}

// GetVideoByPath fetches one record by its unique path.
func (s *Store) GetVideoByPath(path string) (*VideoFile, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotInitialized
	}
	var video VideoFile
	if err := s.db.Where("file_path = ?", path).First(&video).Error; err != nil {
		return nil, err
	}
	return &video, nil
}

// CountVideos returns the catalog size.
func (s *Store) CountVideos() (int64, error) {
	if s == nil || s.db == nil {
		return 0, ErrNotInitialized
	}
	var count int64
	err := s.db.Model(&VideoFile{}).Count(&count).Error
	return count, err
}

// SortColumn names a whitelisted sort key for FetchFiltered.
type SortColumn string

const (
	SortFileName   SortColumn = "file_name"
	SortFileSize   SortColumn = "file_size"
	SortDuration   SortColumn = "duration"
	SortResolution SortColumn = "resolution"
	SortVideoCodec SortColumn = "video_codec"
	SortHDRFormat  SortColumn = "hdr_format"
	SortAudioCodec SortColumn = "audio_codec"
	SortBitRate    SortColumn = "bit_rate"
	SortContainer  SortColumn = "container"
)

// sortExpressions maps sort keys onto column expressions.
var sortExpressions = map[SortColumn]string{
	SortFileName:   "file_name COLLATE NOCASE",
	SortFileSize:   "file_size",
	SortDuration:   "duration_seconds",
	SortResolution: "height",
	SortVideoCodec: "video_codec",
	SortHDRFormat:  "hdr_format",
	SortAudioCodec: "audio_codec",
	SortBitRate:    "bit_rate",
	SortContainer:  "container_format",
}

// VideoFilters is the composable filter set for FetchFiltered. Every filter
// is optional; set filters AND together, except the resolution categories
// which OR internally, and the immersive-audio filter which is an OR of the
// two flags.
type VideoFilters struct {
	SearchText           string
	VideoCodecs          []string
	HDRFormats           []string
	AudioCodecs          []string
	Containers           []string
	ResolutionCategories []mediainfo.ResolutionCategory
	HasAtmos             *bool
	HasDTSX              *bool
	ImmersiveAudio       bool
	MinDuration          *float64
	MaxDuration          *float64
	MinSize              *uint64
	MaxSize              *uint64
	SortBy               SortColumn
	SortAscending        bool
	Limit                int
	Offset               int
}

// FetchFiltered returns catalog records matching the filter set.
func (s *Store) FetchFiltered(filters VideoFilters) ([]VideoFile, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotInitialized
	}

	query := s.db.Model(&VideoFile{})

	if filters.SearchText != "" {
		pattern := "%" + strings.ToLower(filters.SearchText) + "%"
		query = query.Where("LOWER(file_name) LIKE ?", pattern)
	}
	if len(filters.VideoCodecs) > 0 {
		query = query.Where("video_codec IN ?", filters.VideoCodecs)
	}
	if len(filters.HDRFormats) > 0 {
		query = query.Where("hdr_format IN ?", filters.HDRFormats)
	}
	if len(filters.AudioCodecs) > 0 {
		query = query.Where("audio_codec IN ?", filters.AudioCodecs)
	}
	if len(filters.Containers) > 0 {
		query = query.Where("container_format IN ?", filters.Containers)
	}

	if len(filters.ResolutionCategories) > 0 {
		var clauses []string
		var args []interface{}
		for _, category := range filters.ResolutionCategories {
			min, max, ok := mediainfo.HeightRange(category)
			if !ok {
				continue
			}
			if max == 0 {
				clauses = append(clauses, "(height >= ?)")
				args = append(args, min)
			} else {
				clauses = append(clauses, "(height >= ? AND height < ?)")
				args = append(args, min, max)
			}
		}
		if len(clauses) > 0 {
			query = query.Where(strings.Join(clauses, " OR "), args...)
		}
	}

	if filters.HasAtmos != nil {
		query = query.Where("is_atmos = ?", *filters.HasAtmos)
	}
	if filters.HasDTSX != nil {
		query = query.Where("is_dtsx = ?", *filters.HasDTSX)
	}
	if filters.ImmersiveAudio {
		query = query.Where("is_atmos = ? OR is_dtsx = ?", true, true)
	}

	if filters.MinDuration != nil {
		query = query.Where("duration_seconds >= ?", *filters.MinDuration)
	}
	if filters.MaxDuration != nil {
		query = query.Where("duration_seconds <= ?", *filters.MaxDuration)
	}
	if filters.MinSize != nil {
		query = query.Where("file_size >= ?", *filters.MinSize)
	}
	if filters.MaxSize != nil {
		query = query.Where("file_size <= ?", *filters.MaxSize)
	}

	sortExpr, ok := sortExpressions[filters.SortBy]
	if !ok {
		sortExpr = sortExpressions[SortFileName]
	}
	direction := "DESC"
	if filters.SortAscending {
		direction = "ASC"
	}
	query = query.Order(fmt.Sprintf("%s %s", sortExpr, direction))

	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	var videos []VideoFile
	if err := query.Find(&videos).Error; err != nil {
		return nil, err
	}
	return videos, nil
}
