package database

import (
	"github.com/bytePatrol/Media-Folder-Visualizer/internal/mediainfo"
)

// Statistics aggregates catalog totals and per-bucket counts. Every bucket is
// produced by a grouped aggregate query, never by streaming rows.
type Statistics struct {
	TotalVideos   int64            `json:"total_videos"`
	TotalBytes    int64            `json:"total_bytes"`
	TotalDuration float64          `json:"total_duration_seconds"`
	ByVideoCodec  map[string]int64 `json:"by_video_codec"`
	ByHDRFormat   map[string]int64 `json:"by_hdr_format"`
	ByAudioCodec  map[string]int64 `json:"by_audio_codec"`
	ByContainer   map[string]int64 `json:"by_container"`
	ByResolution  map[string]int64 `json:"by_resolution"`
	AtmosCount    int64            `json:"atmos_count"`
	DTSXCount     int64            `json:"dtsx_count"`
	CorruptCount  int64            `json:"corrupt_count"`
}

type bucketRow struct {
	Bucket string
	Count  int64
}

// FetchStatistics computes the aggregate view the dashboards consume.
func (s *Store) FetchStatistics() (*Statistics, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotInitialized
	}

	stats := &Statistics{
		ByVideoCodec: make(map[string]int64),
		ByHDRFormat:  make(map[string]int64),
		ByAudioCodec: make(map[string]int64),
		ByContainer:  make(map[string]int64),
		ByResolution: make(map[string]int64),
	}

	if err := s.db.Model(&VideoFile{}).Count(&stats.TotalVideos).Error; err != nil {
		return nil, err
	}

	type totalsRow struct {
		Bytes    int64
		Duration float64
	}
	var totals totalsRow
	if err := s.db.Model(&VideoFile{}).
		Select("COALESCE(SUM(file_size), 0) AS bytes, COALESCE(SUM(duration_seconds), 0) AS duration").
		Scan(&totals).Error; err != nil {
		return nil, err
	}
	stats.TotalBytes = totals.Bytes
	stats.TotalDuration = totals.Duration

	grouped := []struct {
		column string
		dest   map[string]int64
	}{
		{"video_codec", stats.ByVideoCodec},
		{"hdr_format", stats.ByHDRFormat},
		{"audio_codec", stats.ByAudioCodec},
		{"container_format", stats.ByContainer},
	}
	for _, group := range grouped {
		var rows []bucketRow
		if err := s.db.Model(&VideoFile{}).
			Select(group.column + " AS bucket, COUNT(*) AS count").
			Group(group.column).
			Scan(&rows).Error; err != nil {
			return nil, err
		}
		for _, row := range rows {
			group.dest[row.Bucket] = row.Count
		}
	}

	// Resolution bands are ranges over height, so the grouping is a CASE
	// expression rather than a raw column. NULL heights fall out entirely.
	caseExpr := `CASE
		WHEN height >= 4320 THEN '8K'
		WHEN height >= 2160 THEN '4K'
		WHEN height >= 1440 THEN '1440p'
		WHEN height >= 1080 THEN '1080p'
		WHEN height >= 720 THEN '720p'
		WHEN height >= 480 THEN '480p'
		WHEN height >= 360 THEN '360p'
		ELSE 'SD'
	END`
	var resolutionRows []bucketRow
	if err := s.db.Model(&VideoFile{}).
		Select(caseExpr+" AS bucket, COUNT(*) AS count").
		Where("height IS NOT NULL").
		Group(caseExpr).
		Scan(&resolutionRows).Error; err != nil {
		return nil, err
	}
	for _, row := range resolutionRows {
		stats.ByResolution[row.Bucket] = row.Count
	}

	if err := s.db.Model(&VideoFile{}).Where("is_atmos = ?", true).Count(&stats.AtmosCount).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&VideoFile{}).Where("is_dtsx = ?", true).Count(&stats.DTSXCount).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&VideoFile{}).Where("is_corrupted = ?", true).Count(&stats.CorruptCount).Error; err != nil {
		return nil, err
	}

	return stats, nil
}

// ResolutionBandNames returns every band name, for clients that render empty
// buckets.
func ResolutionBandNames() []string {
	categories := mediainfo.AllResolutionCategories()
	out := make([]string, len(categories))
	for i, c := range categories {
		out[i] = string(c)
	}
	return out
}
