package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bytePatrol/Media-Folder-Visualizer/internal/checkpoint"
	"github.com/bytePatrol/Media-Folder-Visualizer/internal/config"
	"github.com/bytePatrol/Media-Folder-Visualizer/internal/database"
	"github.com/bytePatrol/Media-Folder-Visualizer/internal/events"
	"github.com/bytePatrol/Media-Folder-Visualizer/internal/probe"
	"github.com/bytePatrol/Media-Folder-Visualizer/internal/telemetry"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProber fabricates probe output without spawning a subprocess.
type stubProber struct {
	mu        sync.Mutex
	delay     time.Duration
	failPaths map[string]bool
	calls     map[string]int
}

func newStubProber(delay time.Duration) *stubProber {
	return &stubProber{
		delay:     delay,
		failPaths: make(map[string]bool),
		calls:     make(map[string]int),
	}
}

func (p *stubProber) Probe(path string) (*probe.Output, error) {
	p.mu.Lock()
	p.calls[path]++
	fail := p.failPaths[path]
	p.mu.Unlock()

	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	if fail {
		return nil, &probe.Error{Kind: probe.KindNonZeroExit, Path: path, ExitCode: 1}
	}
	return &probe.Output{
		Format: probe.Format{FormatName: "matroska,webm", Duration: "120.0"},
		Streams: []probe.Stream{
			{CodecType: "video", CodecName: "hevc", Width: 1920, Height: 1080},
			{CodecType: "audio", CodecName: "aac", Channels: 2},
		},
	}, nil
}

func (p *stubProber) callCount(path string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[path]
}

type testEnv struct {
	engine      *Engine
	store       *database.Store
	checkpoints *checkpoint.Store
	prober      *stubProber
	bus         events.EventBus
}

func newTestEnv(t *testing.T, prober *stubProber, mutate func(*config.ScannerConfig)) *testEnv {
	t.Helper()

	dataDir := t.TempDir()
	store, err := database.New(config.DatabaseConfig{
		DatabasePath: filepath.Join(dataDir, "test.sqlite"),
	}, hclog.NewNullLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	bus := events.NewEventBus(events.DefaultConfig(), hclog.NewNullLogger())
	require.NoError(t, bus.Start(context.Background()))
	t.Cleanup(func() { bus.Stop(context.Background()) })

	cfg := config.ScannerConfig{
		MaxConcurrency:     4,
		BatchSize:          10,
		CheckpointInterval: 10 * time.Second,
		MaxRetries:         1,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	checkpoints := checkpoint.NewStore(dataDir, hclog.NewNullLogger())
	engine := NewEngine(store, checkpoints, prober, bus, telemetry.Nop(), cfg, nil, hclog.NewNullLogger())
	engine.Start()
	t.Cleanup(engine.Stop)

	return &testEnv{engine: engine, store: store, checkpoints: checkpoints, prober: prober, bus: bus}
}

func makeVideoFolder(t *testing.T, count int) string {
	t.Helper()
	dir := t.TempDir()
	for i := 0; i < count; i++ {
		path := filepath.Join(dir, fmt.Sprintf("video_%03d.mkv", i))
		require.NoError(t, os.WriteFile(path, []byte("not really a video"), 0644))
	}
	return dir
}

func waitForState(t *testing.T, engine *Engine, state State) {
	t.Helper()
	require.Eventually(t, func() bool {
		return engine.Status().State == state
	}, 10*time.Second, 10*time.Millisecond, "engine never reached state %s", state)
}

func TestScanEmptyFolder(t *testing.T) {
	env := newTestEnv(t, newStubProber(0), nil)
	dir := t.TempDir()

	completions := make(chan events.Event, 4)
	env.bus.Subscribe(events.EventFilter{Types: []events.EventType{events.EventScanCompleted}},
		func(event events.Event) { completions <- event })

	require.NoError(t, env.engine.StartScan(dir))
	waitForState(t, env.engine, StateCompleted)

	status := env.engine.Status()
	assert.Equal(t, 0, status.Total)
	assert.Equal(t, 0, status.Processed)

	count, err := env.store.CountVideos()
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.False(t, env.checkpoints.Exists())

	// Exactly one completion event.
	select {
	case <-completions:
	case <-time.After(2 * time.Second):
		t.Fatal("no completion event")
	}
	select {
	case <-completions:
		t.Fatal("more than one completion event")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestScanCatalogsAllFiles(t *testing.T) {
	env := newTestEnv(t, newStubProber(0), nil)
	dir := makeVideoFolder(t, 25)

	require.NoError(t, env.engine.StartScan(dir))
	waitForState(t, env.engine, StateCompleted)

	count, err := env.store.CountVideos()
	require.NoError(t, err)
	assert.Equal(t, int64(25), count)

	status := env.engine.Status()
	assert.Equal(t, 25, status.Total)
	assert.Equal(t, 25, status.Processed)
	assert.False(t, env.checkpoints.Exists())

	sessions, err := env.store.ListSessions(1)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, database.SessionCompleted, sessions[0].Status)
	require.NotNil(t, sessions[0].CompletedAt)
	assert.Equal(t, 25, sessions[0].ProcessedFiles)

	// Every record carries the session ID.
	videos, err := env.store.FetchFiltered(database.VideoFilters{})
	require.NoError(t, err)
	for _, v := range videos {
		require.NotNil(t, v.ScanSessionID)
		assert.Equal(t, sessions[0].ID, *v.ScanSessionID)
	}
}

func TestScanRejectsConcurrentStart(t *testing.T) {
	env := newTestEnv(t, newStubProber(50*time.Millisecond), nil)
	dir := makeVideoFolder(t, 10)

	require.NoError(t, env.engine.StartScan(dir))
	err := env.engine.StartScan(dir)
	assert.ErrorIs(t, err, ErrScanAlreadyInProgress)

	waitForState(t, env.engine, StateCompleted)
}

func TestScanMissingFolderFails(t *testing.T) {
	env := newTestEnv(t, newStubProber(0), nil)

	err := env.engine.StartScan(filepath.Join(t.TempDir(), "does-not-exist"))
	var accessErr *ErrFolderAccessDenied
	assert.ErrorAs(t, err, &accessErr)
	assert.Equal(t, StateIdle, env.engine.Status().State)
}

func TestFailedFileIsRetriedThenLogged(t *testing.T) {
	prober := newStubProber(0)
	env := newTestEnv(t, prober, func(cfg *config.ScannerConfig) {
		cfg.MaxRetries = 2
	})
	dir := makeVideoFolder(t, 5)
	badPath := filepath.Join(dir, "video_002.mkv")
	prober.failPaths[badPath] = true

	require.NoError(t, env.engine.StartScan(dir))
	waitForState(t, env.engine, StateCompleted)

	// Initial attempt plus two retries.
	assert.Equal(t, 3, prober.callCount(badPath))

	// The bad file is not inserted; the scan still completes all files.
	count, err := env.store.CountVideos()
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)
	assert.Equal(t, 5, env.engine.Status().Processed)

	// A single error-level entry carries the path.
	var errorEntries []LogEntry
	for _, entry := range env.engine.Logs(0) {
		if entry.Level == LogError && entry.FilePath == badPath {
			errorEntries = append(errorEntries, entry)
		}
	}
	require.Len(t, errorEntries, 1)
}

func TestPauseResume(t *testing.T) {
	env := newTestEnv(t, newStubProber(30*time.Millisecond), nil)
	dir := makeVideoFolder(t, 30)

	require.NoError(t, env.engine.StartScan(dir))
	require.Eventually(t, func() bool {
		return env.engine.Status().Processed >= 5
	}, 10*time.Second, 5*time.Millisecond)

	require.NoError(t, env.engine.Pause())
	assert.Equal(t, StatePaused, env.engine.Status().State)
	assert.True(t, env.checkpoints.Exists())

	cp, err := env.checkpoints.Load()
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, 30, cp.TotalFiles)
	// Everything is either processed or still pending at checkpoint time.
	assert.Equal(t, 30, cp.ProcessedFiles+len(cp.PendingFilePaths))

	// Pausing twice is rejected.
	assert.Error(t, env.engine.Pause())

	require.NoError(t, env.engine.Resume())
	waitForState(t, env.engine, StateCompleted)

	status := env.engine.Status()
	assert.Equal(t, 30, status.Processed)
	assert.False(t, env.checkpoints.Exists())

	count, err := env.store.CountVideos()
	require.NoError(t, err)
	assert.Equal(t, int64(30), count)
}

func TestCancelDrainsWorkers(t *testing.T) {
	env := newTestEnv(t, newStubProber(30*time.Millisecond), nil)
	dir := makeVideoFolder(t, 40)

	require.NoError(t, env.engine.StartScan(dir))
	require.Eventually(t, func() bool {
		return env.engine.Status().Processed >= 3
	}, 10*time.Second, 5*time.Millisecond)

	require.NoError(t, env.engine.Cancel())
	waitForState(t, env.engine, StateCancelled)

	status := env.engine.Status()
	assert.Zero(t, status.InFlight)
	assert.Less(t, status.Processed, 40)
	assert.False(t, env.checkpoints.Exists())

	sessions, err := env.store.ListSessions(1)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, database.SessionCancelled, sessions[0].Status)
}

func TestProgressIsMonotonic(t *testing.T) {
	env := newTestEnv(t, newStubProber(time.Millisecond), nil)
	dir := makeVideoFolder(t, 20)

	var mu sync.Mutex
	var processedSeen []int
	env.bus.Subscribe(events.EventFilter{Types: []events.EventType{events.EventScanProgress}},
		func(event events.Event) {
			if processed, ok := event.Data["processed"].(int); ok {
				mu.Lock()
				processedSeen = append(processedSeen, processed)
				mu.Unlock()
			}
		})

	require.NoError(t, env.engine.StartScan(dir))
	waitForState(t, env.engine, StateCompleted)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, processedSeen)
	for i := 1; i < len(processedSeen); i++ {
		assert.GreaterOrEqual(t, processedSeen[i], processedSeen[i-1])
	}
}

func TestResumeFromCheckpoint(t *testing.T) {
	env := newTestEnv(t, newStubProber(0), nil)
	dir := makeVideoFolder(t, 10)

	files, err := DiscoverVideoFiles(dir)
	require.NoError(t, err)
	require.Len(t, files, 10)

	// Simulate a crash after 4 files: the checkpoint carries the other 6.
	session, err := env.store.CreateSession(dir, files)
	require.NoError(t, err)
	cp := &checkpoint.Checkpoint{
		SessionID:        session.ID,
		FolderPath:       dir,
		TotalFiles:       10,
		ProcessedFiles:   4,
		PendingFilePaths: files[4:],
	}
	require.NoError(t, env.checkpoints.Save(cp))

	require.NoError(t, env.engine.ResumeFromCheckpoint(cp))
	waitForState(t, env.engine, StateCompleted)

	status := env.engine.Status()
	assert.Equal(t, 10, status.Processed)
	assert.Equal(t, 10, status.Total)
	assert.False(t, env.checkpoints.Exists())

	// Only the 6 pending files were probed.
	count, err := env.store.CountVideos()
	require.NoError(t, err)
	assert.Equal(t, int64(6), count)
}

func TestCheckRecovery(t *testing.T) {
	env := newTestEnv(t, newStubProber(0), nil)
	dir := makeVideoFolder(t, 10)
	files, err := DiscoverVideoFiles(dir)
	require.NoError(t, err)

	session, err := env.store.CreateSession(dir, files)
	require.NoError(t, err)

	require.NoError(t, env.checkpoints.Save(&checkpoint.Checkpoint{
		SessionID:        session.ID,
		FolderPath:       dir,
		TotalFiles:       10,
		ProcessedFiles:   4,
		PendingFilePaths: files[4:],
	}))

	info, err := env.engine.CheckRecovery(24 * time.Hour)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, 6, info.RemainingFileCount)
	assert.InDelta(t, 40.0, info.ProgressPercentage, 0.001)
	assert.Equal(t, dir, info.FolderPath)

	// Dismissal deletes the checkpoint and fails the session.
	require.NoError(t, env.engine.DismissRecovery())
	assert.False(t, env.checkpoints.Exists())
	got, err := env.store.GetSession(session.ID)
	require.NoError(t, err)
	assert.Equal(t, database.SessionFailed, got.Status)
}

func TestCheckRecoveryPrunesStaleCheckpoint(t *testing.T) {
	env := newTestEnv(t, newStubProber(0), nil)
	dir := makeVideoFolder(t, 2)
	files, err := DiscoverVideoFiles(dir)
	require.NoError(t, err)

	session, err := env.store.CreateSession(dir, files)
	require.NoError(t, err)

	require.NoError(t, env.checkpoints.Save(&checkpoint.Checkpoint{
		SessionID:        session.ID,
		FolderPath:       dir,
		TotalFiles:       2,
		PendingFilePaths: files,
		SavedAt:          time.Now().Add(-48 * time.Hour),
	}))

	info, err := env.engine.CheckRecovery(24 * time.Hour)
	require.NoError(t, err)
	assert.Nil(t, info)
	assert.False(t, env.checkpoints.Exists())

	got, err := env.store.GetSession(session.ID)
	require.NoError(t, err)
	assert.Equal(t, database.SessionFailed, got.Status)
}

func TestCheckRecoveryRejectsVanishedFolder(t *testing.T) {
	env := newTestEnv(t, newStubProber(0), nil)

	gone := filepath.Join(t.TempDir(), "gone")
	require.NoError(t, env.checkpoints.Save(&checkpoint.Checkpoint{
		SessionID:        "orphan",
		FolderPath:       gone,
		TotalFiles:       5,
		PendingFilePaths: []string{filepath.Join(gone, "a.mkv")},
	}))

	info, err := env.engine.CheckRecovery(24 * time.Hour)
	require.NoError(t, err)
	assert.Nil(t, info)
	assert.False(t, env.checkpoints.Exists())
}

func TestPeriodicCheckpointDuringScan(t *testing.T) {
	env := newTestEnv(t, newStubProber(40*time.Millisecond), func(cfg *config.ScannerConfig) {
		cfg.CheckpointInterval = 100 * time.Millisecond
		cfg.MaxConcurrency = 2
	})
	dir := makeVideoFolder(t, 40)

	require.NoError(t, env.engine.StartScan(dir))
	require.Eventually(t, func() bool {
		return env.checkpoints.Exists()
	}, 10*time.Second, 20*time.Millisecond, "no periodic checkpoint appeared")

	cp, err := env.checkpoints.Load()
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, 40, cp.TotalFiles)
	assert.Equal(t, 40, cp.ProcessedFiles+len(cp.PendingFilePaths))

	waitForState(t, env.engine, StateCompleted)
	assert.False(t, env.checkpoints.Exists())
}
