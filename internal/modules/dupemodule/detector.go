// Package dupemodule groups catalog records into duplicate sets by fuzzy
// key, partial content hash, or full content hash.
package dupemodule

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/bytePatrol/Media-Folder-Visualizer/internal/database"
	"github.com/bytePatrol/Media-Folder-Visualizer/internal/telemetry"
	"github.com/hashicorp/go-hclog"
)

// Method selects the duplicate detection strategy.
type Method string

const (
	MethodFuzzy       Method = "fuzzy"
	MethodPartialHash Method = "partial_hash"
	MethodFullHash    Method = "full_hash"
)

// Phase tags duplicate-detection progress emissions.
type Phase string

const (
	PhaseAnalyzing Phase = "analyzing"
	PhaseHashing   Phase = "hashing"
	PhaseComparing Phase = "comparing"
)

// Progress is a per-file progress emission.
type Progress struct {
	Phase     Phase  `json:"phase"`
	Current   int    `json:"current"`
	Total     int    `json:"total"`
	FilePath  string `json:"file_path,omitempty"`
}

// ProgressFunc receives per-file progress. May be nil.
type ProgressFunc func(Progress)

// Group is one duplicate set. Hash is set for the content-hash methods.
type Group struct {
	Files      []database.VideoFile `json:"files"`
	MatchType  Method               `json:"match_type"`
	Confidence float64              `json:"confidence"`
	Hash       string               `json:"hash,omitempty"`
}

// TotalSize sums the file sizes of the group.
func (g *Group) TotalSize() uint64 {
	var total uint64
	for _, f := range g.Files {
		total += f.FileSize
	}
	return total
}

// PotentialSavings is the bytes reclaimable by keeping only the largest file.
func (g *Group) PotentialSavings() uint64 {
	var total, largest uint64
	for _, f := range g.Files {
		total += f.FileSize
		if f.FileSize > largest {
			largest = f.FileSize
		}
	}
	return total - largest
}

// chunkSize is the read granularity for full-content hashing.
const chunkSize = 1 << 20

// Detector runs duplicate detection over catalog records.
type Detector struct {
	logger            hclog.Logger
	metrics           *telemetry.Metrics
	partialHashWindow int64
}

// NewDetector creates a detector. window is the partial-hash window size in
// bytes; zero selects the 64 KiB default.
func NewDetector(window int64, metrics *telemetry.Metrics, logger hclog.Logger) *Detector {
	if window <= 0 {
		window = 64 * 1024
	}
	return &Detector{
		logger:            logger,
		metrics:           metrics,
		partialHashWindow: window,
	}
}

// Detect groups the given records by the selected method. Groups of fewer
// than two files are dropped; results are sorted by total group size,
// largest first.
func (d *Detector) Detect(videos []database.VideoFile, method Method, progress ProgressFunc) ([]Group, error) {
	var groups []Group
	switch method {
	case MethodFuzzy:
		groups = d.detectFuzzy(videos, progress)
	case MethodPartialHash:
		groups = d.detectPartialHash(videos, progress)
	case MethodFullHash:
		groups = d.detectFullHash(videos, progress)
	default:
		return nil, fmt.Errorf("unknown duplicate detection method: %q", method)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].TotalSize() > groups[j].TotalSize()
	})

	d.metrics.DuplicateGroups.Add(float64(len(groups)))
	return groups, nil
}

// fuzzyKey buckets duration to 5 s, size to 1 MiB, and pins the exact
// resolution.
func fuzzyKey(v *database.VideoFile) string {
	durationBucket := int64(0)
	if v.DurationSeconds != nil {
		durationBucket = int64(*v.DurationSeconds/5) * 5
	}
	sizeBucket := v.FileSize / (1 << 20)
	width, height := 0, 0
	if v.Width != nil {
		width = *v.Width
	}
	if v.Height != nil {
		height = *v.Height
	}
	return fmt.Sprintf("%d|%d|%dx%d", durationBucket, sizeBucket, width, height)
}

func (d *Detector) detectFuzzy(videos []database.VideoFile, progress ProgressFunc) []Group {
	buckets := make(map[string][]database.VideoFile)
	for i := range videos {
		emit(progress, Progress{Phase: PhaseAnalyzing, Current: i + 1, Total: len(videos), FilePath: videos[i].FilePath})
		key := fuzzyKey(&videos[i])
		buckets[key] = append(buckets[key], videos[i])
	}

	var groups []Group
	for _, members := range buckets {
		if len(members) < 2 {
			continue
		}
		groups = append(groups, Group{
			Files:      members,
			MatchType:  MethodFuzzy,
			Confidence: fuzzyConfidence(members),
		})
	}
	return groups
}

// fuzzyConfidence starts at 0.5 and earns increments for tight size
// variation and matching codecs/containers, clamped to 1.0.
func fuzzyConfidence(members []database.VideoFile) float64 {
	confidence := 0.5

	minSize, maxSize := members[0].FileSize, members[0].FileSize
	for _, m := range members[1:] {
		if m.FileSize < minSize {
			minSize = m.FileSize
		}
		if m.FileSize > maxSize {
			maxSize = m.FileSize
		}
	}
	if minSize > 0 {
		variation := float64(maxSize)/float64(minSize) - 1
		switch {
		case variation < 0.01:
			confidence += 0.3
		case variation < 0.05:
			confidence += 0.2
		case variation < 0.10:
			confidence += 0.1
		}
	}

	sameCodec := true
	sameContainer := true
	for _, m := range members[1:] {
		if m.VideoCodec != members[0].VideoCodec {
			sameCodec = false
		}
		if m.ContainerFormat != members[0].ContainerFormat {
			sameContainer = false
		}
	}
	if sameCodec {
		confidence += 0.1
	}
	if sameContainer {
		confidence += 0.1
	}

	return math.Min(confidence, 1.0)
}

// detectPartialHash hashes three windows per file: leading, midpoint, and
// trailing. Files no larger than two windows hash only the leading window.
func (d *Detector) detectPartialHash(videos []database.VideoFile, progress ProgressFunc) []Group {
	buckets := make(map[string][]database.VideoFile)
	for i := range videos {
		emit(progress, Progress{Phase: PhaseHashing, Current: i + 1, Total: len(videos), FilePath: videos[i].FilePath})
		hash, err := d.partialHash(videos[i].FilePath)
		if err != nil {
			// Unreadable files are silently excluded.
			d.logger.Debug("partial hash skipped", "file", videos[i].FilePath, "error", err)
			continue
		}
		buckets[hash] = append(buckets[hash], videos[i])
	}

	var groups []Group
	for hash, members := range buckets {
		if len(members) < 2 {
			continue
		}
		groups = append(groups, Group{Files: members, MatchType: MethodPartialHash, Confidence: 0.95, Hash: hash})
	}
	return groups
}

func (d *Detector) partialHash(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", err
	}
	size := info.Size()
	window := d.partialHashWindow

	hasher := sha256.New()
	buf := make([]byte, window)

	readWindow := func(offset int64) error {
		n, err := file.ReadAt(buf, offset)
		if err != nil && err != io.EOF {
			return err
		}
		hasher.Write(buf[:n])
		d.metrics.BytesHashed.Add(float64(n))
		return nil
	}

	if err := readWindow(0); err != nil {
		return "", err
	}
	if size > 2*window {
		if err := readWindow(size/2 - window/2); err != nil {
			return "", err
		}
		if err := readWindow(size - window); err != nil {
			return "", err
		}
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// detectFullHash pre-groups by exact file size, then hashes only the size
// groups with more than one member.
func (d *Detector) detectFullHash(videos []database.VideoFile, progress ProgressFunc) []Group {
	bySize := make(map[uint64][]database.VideoFile)
	for i := range videos {
		emit(progress, Progress{Phase: PhaseAnalyzing, Current: i + 1, Total: len(videos), FilePath: videos[i].FilePath})
		bySize[videos[i].FileSize] = append(bySize[videos[i].FileSize], videos[i])
	}

	var candidates []database.VideoFile
	for _, members := range bySize {
		if len(members) > 1 {
			candidates = append(candidates, members...)
		}
	}

	buckets := make(map[string][]database.VideoFile)
	for i := range candidates {
		emit(progress, Progress{Phase: PhaseHashing, Current: i + 1, Total: len(candidates), FilePath: candidates[i].FilePath})
		hash, err := d.fullHash(candidates[i].FilePath)
		if err != nil {
			d.logger.Debug("full hash skipped", "file", candidates[i].FilePath, "error", err)
			continue
		}
		buckets[hash] = append(buckets[hash], candidates[i])
	}

	emit(progress, Progress{Phase: PhaseComparing, Current: len(candidates), Total: len(candidates)})

	var groups []Group
	for hash, members := range buckets {
		if len(members) < 2 {
			continue
		}
		groups = append(groups, Group{Files: members, MatchType: MethodFullHash, Confidence: 1.0, Hash: hash})
	}
	return groups
}

func (d *Detector) fullHash(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hasher := sha256.New()
	buf := make([]byte, chunkSize)
	for {
		n, err := file.Read(buf)
		if n > 0 {
			hasher.Write(buf[:n])
			d.metrics.BytesHashed.Add(float64(n))
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

func emit(progress ProgressFunc, p Progress) {
	if progress != nil {
		progress(p)
	}
}
