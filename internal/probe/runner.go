package probe

import (
	"bytes"
	"encoding/json"
	"os/exec"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/bytePatrol/Media-Folder-Visualizer/internal/config"
	"github.com/hashicorp/go-hclog"
)

// candidatePaths are the conventional install locations tried before falling
// back to PATH resolution.
var candidatePaths = []string{
	"/usr/local/bin/ffprobe",
	"/opt/homebrew/bin/ffprobe",
}

// graceWindow is how long a timed-out probe gets between SIGTERM and SIGKILL.
// Network-mounted files can leave ffprobe stuck in uninterruptible I/O, so
// the forceful kill is not optional.
const graceWindow = 100 * time.Millisecond

// Runner invokes ffprobe with a fixed argument profile and a hard timeout.
type Runner struct {
	cfg    config.ProbeConfig
	logger hclog.Logger

	mu           sync.Mutex
	resolvedPath string
	availability *bool
	checkedAt    time.Time
}

// availabilityTTL caches the binary-resolution result.
const availabilityTTL = 5 * time.Minute

// NewRunner creates a probe runner from configuration.
func NewRunner(cfg config.ProbeConfig, logger hclog.Logger) *Runner {
	return &Runner{cfg: cfg, logger: logger}
}

// BinaryPath resolves the ffprobe binary: configured path first, then the
// conventional install locations, then PATH. The result is cached.
func (r *Runner) BinaryPath() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.binaryPathLocked()
}

func (r *Runner) binaryPathLocked() (string, error) {
	if r.resolvedPath != "" {
		return r.resolvedPath, nil
	}

	candidates := candidatePaths
	if r.cfg.BinaryPath != "" {
		candidates = append([]string{r.cfg.BinaryPath}, candidates...)
	}
	for _, candidate := range candidates {
		if _, err := exec.LookPath(candidate); err == nil {
			r.resolvedPath = candidate
			return candidate, nil
		}
	}
	if path, err := exec.LookPath("ffprobe"); err == nil {
		r.resolvedPath = path
		return path, nil
	}
	return "", &Error{Kind: KindNotFound}
}

// Available reports whether ffprobe can be resolved, caching the answer.
func (r *Runner) Available() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.availability != nil && time.Since(r.checkedAt) < availabilityTTL {
		return *r.availability
	}

	_, err := r.binaryPathLocked()
	available := err == nil
	r.availability = &available
	r.checkedAt = time.Now()
	return available
}

// Probe runs ffprobe against path and returns the parsed record. The probe
// and analysis byte/duration caps are mandatory; they trade completeness
// against latency on large or network-resident files.
func (r *Runner) Probe(path string) (*Output, error) {
	binary, err := r.BinaryPath()
	if err != nil {
		return nil, err
	}

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		"-probesize", strconv.FormatInt(r.cfg.ProbeSize, 10),
		"-analyzeduration", strconv.FormatInt(r.cfg.AnalyzeDuration, 10),
		path,
	}

	cmd := exec.Command(binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Bound the wait for the output pipes once the process has exited, so a
	// child it spawned cannot hold Wait open after a kill.
	cmd.WaitDelay = time.Second

	if err := cmd.Start(); err != nil {
		return nil, &Error{Kind: KindProcessStartFailed, Path: path, Err: err}
	}

	// The blocking wait runs here, on the caller's worker goroutine; the
	// timer enforces the wall-clock budget independently.
	timedOut := make(chan struct{})
	timer := time.AfterFunc(r.cfg.Timeout, func() {
		close(timedOut)
		r.terminate(cmd)
	})
	err = cmd.Wait()
	timer.Stop()

	select {
	case <-timedOut:
		return nil, &Error{Kind: KindTimeout, Path: path}
	default:
	}

	if err != nil {
		exitCode := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		return nil, &Error{
			Kind:     KindNonZeroExit,
			Path:     path,
			ExitCode: exitCode,
			Stderr:   stderrTail(stderr.String()),
			Err:      err,
		}
	}

	var output Output
	if err := json.Unmarshal(stdout.Bytes(), &output); err != nil {
		return nil, &Error{Kind: KindParseError, Path: path, Err: err}
	}
	return &output, nil
}

// terminate sends SIGTERM, waits the grace window, then SIGKILLs.
func (r *Runner) terminate(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		return
	}
	time.Sleep(graceWindow)
	// Kill is a no-op error if the process already exited.
	if err := cmd.Process.Kill(); err == nil {
		r.logger.Debug("probe killed after grace window")
	}
}

// stderrTail keeps the last chunk of stderr for error reporting.
func stderrTail(s string) string {
	const maxTail = 512
	if len(s) > maxTail {
		return s[len(s)-maxTail:]
	}
	return s
}
