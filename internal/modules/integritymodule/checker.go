package integritymodule

import (
	"bytes"
	"encoding/json"
	"os/exec"
	"strconv"
	"sync"

	"github.com/bytePatrol/Media-Folder-Visualizer/internal/config"
	"github.com/bytePatrol/Media-Folder-Visualizer/internal/database"
	"github.com/bytePatrol/Media-Folder-Visualizer/internal/events"
	"github.com/bytePatrol/Media-Folder-Visualizer/internal/telemetry"
	"github.com/hashicorp/go-hclog"
)

// Result is the integrity verdict for one file.
type Result struct {
	VideoID     uint              `json:"video_id"`
	FilePath    string            `json:"file_path"`
	IsCorrupted bool              `json:"is_corrupted"`
	Errors      []CorruptionError `json:"errors,omitempty"`
}

// Checker decodes files with ffmpeg and reports corruption. A file is
// corrupted iff the decoder wrote anything to stderr.
type Checker struct {
	cfg     config.IntegrityConfig
	metrics *telemetry.Metrics
	logger  hclog.Logger

	mu           sync.Mutex
	resolvedPath string
}

// NewChecker creates an integrity checker.
func NewChecker(cfg config.IntegrityConfig, metrics *telemetry.Metrics, logger hclog.Logger) *Checker {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 4
	}
	return &Checker{cfg: cfg, metrics: metrics, logger: logger}
}

func (c *Checker) binaryPath() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.resolvedPath != "" {
		return c.resolvedPath, nil
	}
	candidates := []string{"/usr/local/bin/ffmpeg", "/opt/homebrew/bin/ffmpeg"}
	if c.cfg.BinaryPath != "" {
		candidates = append([]string{c.cfg.BinaryPath}, candidates...)
	}
	for _, candidate := range candidates {
		if _, err := exec.LookPath(candidate); err == nil {
			c.resolvedPath = candidate
			return candidate, nil
		}
	}
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		return "", err
	}
	c.resolvedPath = path
	return path, nil
}

// CheckFile decodes one file to the null sink and classifies the stderr.
func (c *Checker) CheckFile(video database.VideoFile) Result {
	result := Result{VideoID: video.ID, FilePath: video.FilePath}

	binary, err := c.binaryPath()
	if err != nil {
		result.IsCorrupted = true
		result.Errors = []CorruptionError{{Type: CorruptionProcessError, Message: "ffmpeg not found"}}
		return result
	}

	cmd := exec.Command(binary, "-v", "error", "-i", video.FilePath, "-f", "null", "-")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		result.IsCorrupted = true
		result.Errors = []CorruptionError{{Type: CorruptionProcessError, Message: err.Error()}}
		return result
	}
	// The decoder exits non-zero on unreadable input, but the verdict rests
	// on stderr alone: a clean decode with exit 0 and empty stderr is sound.
	_ = cmd.Wait()

	if output := stderr.String(); len(bytes.TrimSpace([]byte(output))) > 0 {
		result.IsCorrupted = true
		result.Errors = ParseStderr(output)
	}
	return result
}

// ProgressFunc receives per-file completion during a batch check.
type ProgressFunc func(done, total int, result Result)

// CheckAll runs bounded-parallel integrity checks over the given records and
// persists each verdict. Results arrive in completion order.
func (c *Checker) CheckAll(store *database.Store, bus events.EventBus, videos []database.VideoFile, progress ProgressFunc) []Result {
	total := len(videos)
	results := make([]Result, 0, total)
	resultCh := make(chan Result)
	sem := make(chan struct{}, c.cfg.MaxConcurrency)

	var wg sync.WaitGroup
	for _, video := range videos {
		wg.Add(1)
		go func(v database.VideoFile) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			resultCh <- c.CheckFile(v)
		}(video)
	}
	go func() {
		wg.Wait()
		close(resultCh)
	}()

	done := 0
	for result := range resultCh {
		done++
		results = append(results, result)
		c.metrics.IntegrityChecked.Inc()
		if result.IsCorrupted {
			c.metrics.IntegrityCorrupted.Inc()
		}

		c.persist(store, result)
		if progress != nil {
			progress(done, total, result)
		}
		if bus != nil {
			event := events.NewEvent(events.EventIntegrityProgress, "Integrity Check",
				strconv.Itoa(done)+"/"+strconv.Itoa(total))
			event.Data = map[string]interface{}{
				"done":         done,
				"total":        total,
				"file_path":    result.FilePath,
				"is_corrupted": result.IsCorrupted,
			}
			_ = bus.PublishAsync(event)
		}
	}

	return results
}

// persist stores the verdict on the catalog row. Failures are logged, not
// fatal.
func (c *Checker) persist(store *database.Store, result Result) {
	details := ""
	if len(result.Errors) > 0 {
		if data, err := json.Marshal(result.Errors); err == nil {
			details = string(data)
		}
	}
	if err := store.SetCorruption(result.VideoID, result.IsCorrupted, details); err != nil {
		c.logger.Warn("failed to persist integrity verdict", "file", result.FilePath, "error", err)
	}
}
