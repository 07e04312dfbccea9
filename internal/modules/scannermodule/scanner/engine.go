package scanner

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/bytePatrol/Media-Folder-Visualizer/internal/checkpoint"
	"github.com/bytePatrol/Media-Folder-Visualizer/internal/config"
	"github.com/bytePatrol/Media-Folder-Visualizer/internal/database"
	"github.com/bytePatrol/Media-Folder-Visualizer/internal/events"
	"github.com/bytePatrol/Media-Folder-Visualizer/internal/mediainfo"
	"github.com/bytePatrol/Media-Folder-Visualizer/internal/probe"
	"github.com/bytePatrol/Media-Folder-Visualizer/internal/telemetry"
	"github.com/hashicorp/go-hclog"
)

// Lifecycle command errors.
var (
	ErrScanAlreadyInProgress = errors.New("scanner: a scan is already in progress")
	ErrNoActiveScan          = errors.New("scanner: no active scan")
	ErrNotPaused             = errors.New("scanner: scan is not paused")
	ErrEngineStopped         = errors.New("scanner: engine is not running")
)

// progressInterval throttles progress emissions during active scanning.
// State transitions always emit immediately.
const progressInterval = 100 * time.Millisecond

// logRingCapacity bounds the in-engine log buffer; when full the oldest
// entries are dropped, never the newest.
const logRingCapacity = 1000

// retryBackoffs is the exponential backoff schedule between probe attempts.
var retryBackoffs = []time.Duration{500 * time.Millisecond, time.Second, 2 * time.Second}

type cmdKind int

const (
	cmdStart cmdKind = iota
	cmdPause
	cmdResume
	cmdCancel
	cmdResumeCheckpoint
	cmdStop
)

type command struct {
	kind   cmdKind
	folder string
	cp     *checkpoint.Checkpoint
	reply  chan error
}

// Engine orchestrates discovery, probing, parsing, and batched persistence.
// All mutable scan state (pending list, counters, batch buffer, session) is
// owned by the single run goroutine; commands and worker results arrive over
// channels, so no locks guard the pipeline state.
type Engine struct {
	store       *database.Store
	checkpoints *checkpoint.Store
	prober      Prober
	bus         events.EventBus
	metrics     *telemetry.Metrics
	cfg         config.ScannerConfig
	sysmon      *SystemLoadMonitor
	logger      hclog.Logger

	commands chan command
	results  chan workerResult
	wake     chan struct{}
	stopped  chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once

	// Snapshot for concurrent readers; the run loop refreshes it after every
	// state mutation.
	statusMu sync.RWMutex
	status   Status

	logMu   sync.RWMutex
	logRing []LogEntry

	// Run-loop-owned state. Never touched outside the run goroutine.
	state          State
	session        *database.ScanSession
	pending        []string
	inFlightPaths  map[string]bool
	processed      int
	total          int
	buffer         []*database.VideoFile
	lastCheckpoint time.Time
	lastProgress   time.Time
	currentFile    string
}

// NewEngine wires the scan engine. Call Start before issuing commands.
func NewEngine(
	store *database.Store,
	checkpoints *checkpoint.Store,
	prober Prober,
	bus events.EventBus,
	metrics *telemetry.Metrics,
	cfg config.ScannerConfig,
	sysmon *SystemLoadMonitor,
	logger hclog.Logger,
) *Engine {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 12
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.CheckpointInterval <= 0 {
		cfg.CheckpointInterval = 10 * time.Second
	}
	return &Engine{
		store:         store,
		checkpoints:   checkpoints,
		prober:        prober,
		bus:           bus,
		metrics:       metrics,
		cfg:           cfg,
		sysmon:        sysmon,
		logger:        logger,
		commands:      make(chan command),
		results:       make(chan workerResult, cfg.MaxConcurrency),
		wake:          make(chan struct{}, 1),
		stopped:       make(chan struct{}),
		state:         StateIdle,
		inFlightPaths: make(map[string]bool),
		status:        Status{State: StateIdle},
	}
}

// Start launches the engine's run loop.
func (e *Engine) Start() {
	e.startOnce.Do(func() {
		go e.run()
	})
}

// Stop shuts the run loop down. In-flight workers are drained first so none
// are orphaned; an active session is left paused with a checkpoint.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		reply := make(chan error, 1)
		select {
		case e.commands <- command{kind: cmdStop, reply: reply}:
			<-reply
		case <-e.stopped:
		}
	})
}

// StartScan begins a new scan of folderPath. Rejects when a session is
// already active.
func (e *Engine) StartScan(folderPath string) error {
	return e.send(command{kind: cmdStart, folder: folderPath})
}

// Pause flushes the insert batch, persists session state and a checkpoint,
// and quiesces the dispatcher. In-flight probes run to completion.
func (e *Engine) Pause() error {
	return e.send(command{kind: cmdPause})
}

// Resume restarts dispatch from the in-memory pending list.
func (e *Engine) Resume() error {
	return e.send(command{kind: cmdResume})
}

// Cancel stops the scan: no new work is dispatched, in-flight workers drain,
// the batch is flushed, and the checkpoint is deleted.
func (e *Engine) Cancel() error {
	return e.send(command{kind: cmdCancel})
}

// ResumeFromCheckpoint rehydrates the pending list and counters from a
// checkpoint and continues scanning.
func (e *Engine) ResumeFromCheckpoint(cp *checkpoint.Checkpoint) error {
	return e.send(command{kind: cmdResumeCheckpoint, cp: cp})
}

func (e *Engine) send(cmd command) error {
	cmd.reply = make(chan error, 1)
	select {
	case e.commands <- cmd:
		return <-cmd.reply
	case <-e.stopped:
		return ErrEngineStopped
	}
}

// Status returns a point-in-time snapshot safe for concurrent readers.
func (e *Engine) Status() Status {
	e.statusMu.RLock()
	defer e.statusMu.RUnlock()
	return e.status
}

// Logs returns up to limit recent log entries, oldest first.
func (e *Engine) Logs(limit int) []LogEntry {
	e.logMu.RLock()
	defer e.logMu.RUnlock()
	n := len(e.logRing)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]LogEntry, limit)
	copy(out, e.logRing[n-limit:])
	return out
}

// run is the engine's single serialization domain.
func (e *Engine) run() {
	tick := time.Second
	if e.cfg.CheckpointInterval < tick {
		tick = e.cfg.CheckpointInterval
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case cmd := <-e.commands:
			if cmd.kind == cmdStop {
				e.drainForStop()
				cmd.reply <- nil
				close(e.stopped)
				return
			}
			cmd.reply <- e.handleCommand(cmd)
		case res := <-e.results:
			e.handleResult(res)
		case <-ticker.C:
			e.maybeCheckpoint()
		case <-e.wake:
			e.dispatch()
		}
	}
}

// drainForStop waits out in-flight workers and leaves an active session
// paused with a durable checkpoint.
func (e *Engine) drainForStop() {
	for len(e.inFlightPaths) > 0 {
		e.handleResult(<-e.results)
	}
	if e.state == StateScanning || e.state == StatePaused {
		e.flushBuffer()
		e.writeCheckpoint()
		e.persistSession(database.SessionPaused)
	}
}

func (e *Engine) handleCommand(cmd command) error {
	switch cmd.kind {
	case cmdStart:
		return e.startScan(cmd.folder)
	case cmdPause:
		return e.pause()
	case cmdResume:
		return e.resume()
	case cmdCancel:
		return e.cancel()
	case cmdResumeCheckpoint:
		return e.resumeFromCheckpoint(cmd.cp)
	default:
		return fmt.Errorf("scanner: unknown command %d", cmd.kind)
	}
}

func (e *Engine) startScan(folderPath string) error {
	if e.state == StateScanning || e.state == StatePaused {
		return ErrScanAlreadyInProgress
	}

	// Discovery runs inside the engine domain, so a pause issued during
	// discovery is simply queued until the first dispatch tick.
	files, err := DiscoverVideoFiles(folderPath)
	if err != nil {
		return err
	}

	session, err := e.store.CreateSession(folderPath, files)
	if err != nil {
		return fmt.Errorf("failed to create scan session: %w", err)
	}

	e.session = session
	e.pending = files
	e.inFlightPaths = make(map[string]bool)
	e.processed = 0
	e.total = len(files)
	e.buffer = nil
	e.currentFile = ""
	e.lastCheckpoint = time.Now()
	e.state = StateScanning

	e.log(LogInfo, fmt.Sprintf("scan started: %d video files in %s", e.total, folderPath), "")
	e.publish(events.NewEvent(events.EventScanStarted, "Scan Started",
		fmt.Sprintf("Scanning %d files in %s", e.total, folderPath)))
	e.emitProgress(true)

	if e.total == 0 {
		// NoVideoFilesFound surfaces as a completed scan with zero files.
		e.finalize(StateCompleted)
		return nil
	}

	e.dispatch()
	return nil
}

func (e *Engine) pause() error {
	if e.state != StateScanning {
		return ErrNoActiveScan
	}
	e.state = StatePaused
	e.flushBuffer()
	e.persistSession(database.SessionPaused)
	e.writeCheckpoint()
	e.log(LogInfo, fmt.Sprintf("scan paused at %d/%d", e.processed, e.total), "")
	e.publish(events.NewEvent(events.EventScanPaused, "Scan Paused",
		fmt.Sprintf("Paused at %d/%d files", e.processed, e.total)))
	e.emitProgress(true)
	return nil
}

func (e *Engine) resume() error {
	if e.state != StatePaused {
		return ErrNotPaused
	}
	e.state = StateScanning
	e.persistSession(database.SessionInProgress)
	e.log(LogInfo, fmt.Sprintf("scan resumed at %d/%d", e.processed, e.total), "")
	e.publish(events.NewEvent(events.EventScanResumed, "Scan Resumed",
		fmt.Sprintf("Resumed at %d/%d files", e.processed, e.total)))
	e.emitProgress(true)
	e.dispatch()
	return nil
}

func (e *Engine) cancel() error {
	if e.state != StateScanning && e.state != StatePaused {
		return ErrNoActiveScan
	}
	e.state = StateCancelled
	e.log(LogWarning, "scan cancelled", "")
	if len(e.inFlightPaths) == 0 {
		e.finalize(StateCancelled)
	}
	// Otherwise the terminal transition fires when the last worker returns.
	return nil
}

func (e *Engine) resumeFromCheckpoint(cp *checkpoint.Checkpoint) error {
	if e.state == StateScanning || e.state == StatePaused {
		return ErrScanAlreadyInProgress
	}
	if cp == nil {
		return errors.New("scanner: nil checkpoint")
	}

	session, err := e.store.GetSession(cp.SessionID)
	if err != nil {
		// The session row can be gone (database reset); recreate it so the
		// resumed scan stays attributable.
		session, err = e.store.CreateSession(cp.FolderPath, cp.PendingFilePaths)
		if err != nil {
			return fmt.Errorf("failed to recreate session: %w", err)
		}
		session.TotalFiles = cp.TotalFiles
		session.ProcessedFiles = cp.ProcessedFiles
	}
	session.Status = database.SessionInProgress
	session.TotalFiles = cp.TotalFiles
	session.ProcessedFiles = cp.ProcessedFiles
	session.PendingFiles = cp.PendingFilePaths
	if err := e.store.UpdateSession(session); err != nil {
		e.logger.Warn("failed to persist resumed session", "error", err)
	}

	e.session = session
	e.pending = append([]string(nil), cp.PendingFilePaths...)
	e.inFlightPaths = make(map[string]bool)
	e.processed = cp.ProcessedFiles
	e.total = cp.TotalFiles
	e.buffer = nil
	e.currentFile = ""
	e.lastCheckpoint = time.Now()
	e.state = StateScanning

	e.log(LogInfo, fmt.Sprintf("scan recovered from checkpoint: %d/%d done, %d remaining",
		e.processed, e.total, len(e.pending)), "")
	e.publish(events.NewEvent(events.EventScanResumed, "Scan Recovered",
		fmt.Sprintf("Resumed %s from checkpoint", cp.FolderPath)))
	e.emitProgress(true)

	if len(e.pending) == 0 {
		e.finalize(StateCompleted)
		return nil
	}
	e.dispatch()
	return nil
}

// dispatch tops the worker pool up to the concurrency bound.
func (e *Engine) dispatch() {
	for e.state == StateScanning && len(e.inFlightPaths) < e.cfg.MaxConcurrency && len(e.pending) > 0 {
		if e.cfg.AdaptiveThrottling && e.sysmon != nil && len(e.inFlightPaths) > 0 && e.sysmon.ShouldThrottle() {
			// Keep what is already in flight and try again shortly.
			time.AfterFunc(500*time.Millisecond, func() {
				select {
				case e.wake <- struct{}{}:
				default:
				}
			})
			return
		}

		path := e.pending[0]
		e.pending = e.pending[1:]
		e.inFlightPaths[path] = true
		e.metrics.ActiveWorkers.Inc()
		sessionID := ""
		if e.session != nil {
			sessionID = e.session.ID
		}
		go e.worker(path, sessionID)
	}
	e.updateStatus()
}

func (e *Engine) handleResult(res workerResult) {
	delete(e.inFlightPaths, res.path)
	e.metrics.ActiveWorkers.Dec()
	e.processed++
	e.currentFile = res.path
	e.metrics.FilesScanned.Inc()

	if res.record != nil {
		e.buffer = append(e.buffer, res.record)
		if len(e.buffer) >= e.cfg.BatchSize {
			e.flushBuffer()
		}
	} else if res.err != nil {
		e.metrics.FilesFailed.Inc()
		e.log(LogError, fmt.Sprintf("failed after retries: %v", res.err), res.path)
	}

	e.emitProgress(false)

	switch e.state {
	case StateScanning:
		if len(e.pending) == 0 && len(e.inFlightPaths) == 0 {
			e.finalize(StateCompleted)
			return
		}
		e.dispatch()
	case StateCancelled:
		if len(e.inFlightPaths) == 0 {
			e.finalize(StateCancelled)
		}
	default:
		// Paused: results from workers that were in flight at pause time
		// still count; the dispatcher stays quiet.
		e.updateStatus()
	}
}

// worker probes one file with retry and hands the result back to the loop.
// It runs off the engine goroutine; the blocking subprocess wait lives here.
func (e *Engine) worker(path, sessionID string) {
	res := workerResult{path: path}

	for attempt := 0; ; attempt++ {
		record, err := e.probeOne(path, sessionID)
		if err == nil {
			res.record = record
			res.err = nil
			break
		}
		res.err = err
		if attempt >= e.maxRetries() {
			break
		}
		backoff := retryBackoffs[len(retryBackoffs)-1]
		if attempt < len(retryBackoffs) {
			backoff = retryBackoffs[attempt]
		}
		time.Sleep(backoff)
	}

	e.results <- res
}

func (e *Engine) maxRetries() int {
	if e.cfg.MaxRetries > 0 {
		return e.cfg.MaxRetries
	}
	return len(retryBackoffs)
}

func (e *Engine) probeOne(path, sessionID string) (*database.VideoFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat failed: %w", err)
	}

	started := time.Now()
	output, err := e.prober.Probe(path)
	e.metrics.ProbeDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		e.metrics.ProbeFailures.WithLabelValues(probeErrorKind(err)).Inc()
		return nil, err
	}

	meta := mediainfo.Parse(output, path, uint64(info.Size()))
	record := recordFromMetadata(meta)
	if sessionID != "" {
		id := sessionID
		record.ScanSessionID = &id
	}
	return record, nil
}

// recordFromMetadata maps parsed metadata onto the catalog row.
func recordFromMetadata(meta mediainfo.VideoMetadata) *database.VideoFile {
	return &database.VideoFile{
		FilePath:        meta.FilePath,
		FileName:        meta.FileName,
		FileSize:        meta.FileSize,
		DurationSeconds: meta.DurationSeconds,
		VideoCodec:      string(meta.VideoCodec),
		Width:           meta.Width,
		Height:          meta.Height,
		FrameRate:       meta.FrameRate,
		BitRate:         meta.BitRate,
		BitDepth:        meta.BitDepth,
		HDRFormat:       string(meta.HDRFormat),
		AudioCodec:      string(meta.AudioCodec),
		AudioChannels:   meta.AudioChannels,
		IsAtmos:         meta.IsAtmos,
		IsDTSX:          meta.IsDTSX,
		ContainerFormat: string(meta.Container),
		ScannedAt:       time.Now(),
	}
}

// flushBuffer writes the batch in a single transaction. A failed batch is
// logged and dropped; the scan continues.
func (e *Engine) flushBuffer() {
	if len(e.buffer) == 0 {
		return
	}
	if err := e.store.BatchUpsertVideos(e.buffer); err != nil {
		e.log(LogWarning, fmt.Sprintf("batch insert failed, dropping %d records: %v", len(e.buffer), err), "")
	} else {
		e.metrics.BatchesFlushed.Inc()
	}
	e.buffer = nil
}

// maybeCheckpoint writes a checkpoint when the interval has elapsed.
func (e *Engine) maybeCheckpoint() {
	if e.state != StateScanning {
		return
	}
	if time.Since(e.lastCheckpoint) < e.cfg.CheckpointInterval {
		return
	}
	e.flushBuffer()
	e.writeCheckpoint()
	e.persistSession(database.SessionInProgress)
}

// writeCheckpoint serializes pending work, including paths currently in
// flight: they have not been durably processed, and the upsert semantics
// make re-probing them on recovery harmless.
func (e *Engine) writeCheckpoint() {
	if e.session == nil {
		return
	}
	cp := &checkpoint.Checkpoint{
		SessionID:        e.session.ID,
		FolderPath:       e.session.FolderPath,
		TotalFiles:       e.total,
		ProcessedFiles:   e.processed,
		PendingFilePaths: e.pendingWithInFlight(),
		SavedAt:          time.Now(),
	}
	if err := e.checkpoints.Save(cp); err != nil {
		e.log(LogWarning, fmt.Sprintf("checkpoint write failed: %v", err), "")
		return
	}
	e.lastCheckpoint = time.Now()
	e.metrics.CheckpointsWritten.Inc()
}

func (e *Engine) pendingWithInFlight() []string {
	out := make([]string, 0, len(e.inFlightPaths)+len(e.pending))
	for path := range e.inFlightPaths {
		out = append(out, path)
	}
	out = append(out, e.pending...)
	return out
}

// persistSession mirrors engine counters into the session row. Failures are
// logged but never abort the scan.
func (e *Engine) persistSession(status database.SessionStatus) {
	if e.session == nil {
		return
	}
	e.session.Status = status
	e.session.TotalFiles = e.total
	e.session.ProcessedFiles = e.processed
	e.session.PendingFiles = e.pendingWithInFlight()
	now := time.Now()
	e.session.LastCheckpointAt = &now
	if status.IsTerminal() {
		e.session.CompletedAt = &now
	}
	if err := e.store.UpdateSession(e.session); err != nil {
		e.log(LogWarning, fmt.Sprintf("session update failed: %v", err), "")
	}
}

// finalize runs the terminal transition exactly once per session.
func (e *Engine) finalize(terminal State) {
	e.flushBuffer()

	var sessionStatus database.SessionStatus
	var eventType events.EventType
	switch terminal {
	case StateCancelled:
		sessionStatus = database.SessionCancelled
		eventType = events.EventScanCancelled
	case StateFailed:
		sessionStatus = database.SessionFailed
		eventType = events.EventScanFailed
	default:
		sessionStatus = database.SessionCompleted
		eventType = events.EventScanCompleted
	}
	e.persistSession(sessionStatus)

	if err := e.checkpoints.Delete(); err != nil {
		e.log(LogWarning, fmt.Sprintf("checkpoint delete failed: %v", err), "")
	}

	duration := time.Duration(0)
	folder := ""
	if e.session != nil {
		duration = time.Since(e.session.StartedAt)
		folder = e.session.FolderPath
	}
	completion := Completion{
		Total:      e.total,
		Processed:  e.processed,
		Duration:   duration,
		FolderPath: folder,
		State:      terminal,
	}

	e.state = terminal
	level := LogSuccess
	if terminal != StateCompleted {
		level = LogWarning
	}
	e.log(level, fmt.Sprintf("scan %s: %d/%d files in %s", terminal, e.processed, e.total,
		duration.Round(time.Millisecond)), "")

	event := events.NewEvent(eventType, "Scan Finished",
		fmt.Sprintf("%s: %d/%d files", terminal, e.processed, e.total))
	event.Data = map[string]interface{}{
		"total":       completion.Total,
		"processed":   completion.Processed,
		"duration":    completion.Duration.String(),
		"folder_path": completion.FolderPath,
		"state":       string(completion.State),
	}
	e.publish(event)
	e.emitProgress(true)
}

// emitProgress publishes a progress event. Throttled to one per 100 ms
// unless force (state transitions). processed is monotonically
// non-decreasing within a session.
func (e *Engine) emitProgress(force bool) {
	e.updateStatus()
	if !force && time.Since(e.lastProgress) < progressInterval {
		return
	}
	e.lastProgress = time.Now()

	event := events.NewEvent(events.EventScanProgress, "Scan Progress", "")
	event.Data = map[string]interface{}{
		"total":        e.total,
		"processed":    e.processed,
		"current_file": e.currentFile,
		"state":        string(e.state),
	}
	e.publish(event)
}

func (e *Engine) updateStatus() {
	status := Status{
		State:     e.state,
		Total:     e.total,
		Processed: e.processed,
		Pending:   len(e.pending),
		InFlight:  len(e.inFlightPaths),
	}
	if e.session != nil {
		status.SessionID = e.session.ID
		status.FolderPath = e.session.FolderPath
	}
	if e.total > 0 {
		status.ProgressPct = float64(e.processed) / float64(e.total) * 100
	}

	e.statusMu.Lock()
	e.status = status
	e.statusMu.Unlock()
}

// log appends to the ring buffer and mirrors the entry onto the event bus.
func (e *Engine) log(level LogLevel, message, filePath string) {
	entry := LogEntry{
		Timestamp: time.Now(),
		Level:     level,
		Message:   message,
		FilePath:  filePath,
	}

	e.logMu.Lock()
	if len(e.logRing) >= logRingCapacity {
		e.logRing = e.logRing[1:]
	}
	e.logRing = append(e.logRing, entry)
	e.logMu.Unlock()

	switch level {
	case LogError:
		e.logger.Error(message, "file", filePath)
	case LogWarning:
		e.logger.Warn(message, "file", filePath)
	default:
		e.logger.Info(message)
	}

	event := events.NewEvent(events.EventScanLog, "Scan Log", message)
	event.Data = map[string]interface{}{
		"level":     string(level),
		"file_path": filePath,
	}
	e.publish(event)
}

func (e *Engine) publish(event events.Event) {
	if e.bus == nil {
		return
	}
	// Best-effort: events are lossy under backpressure by design.
	_ = e.bus.PublishAsync(event)
}

func probeErrorKind(err error) string {
	var perr *probe.Error
	if errors.As(err, &perr) {
		return string(perr.Kind)
	}
	return "other"
}
