package probe

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bytePatrol/Media-Folder-Visualizer/internal/config"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScript drops an executable shell script standing in for ffprobe.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-ffprobe")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755))
	return path
}

func newTestRunner(t *testing.T, binary string, timeout time.Duration) *Runner {
	t.Helper()
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return NewRunner(config.ProbeConfig{
		BinaryPath:      binary,
		Timeout:         timeout,
		ProbeSize:       5_000_000,
		AnalyzeDuration: 5_000_000,
	}, hclog.NewNullLogger())
}

func TestProbeParsesJSONOutput(t *testing.T) {
	script := writeScript(t, `cat <<'EOF'
{
  "format": {"format_name": "matroska,webm", "duration": "120.5", "bit_rate": "5000000"},
  "streams": [
    {"index": 0, "codec_type": "video", "codec_name": "hevc", "width": 3840, "height": 2160,
     "color_transfer": "smpte2084", "color_primaries": "bt2020nc",
     "side_data_list": [{"side_data_type": "Mastering display metadata"}]},
    {"index": 1, "codec_type": "audio", "codec_name": "truehd", "channels": 8}
  ]
}
EOF`)
	runner := newTestRunner(t, script, 0)

	output, err := runner.Probe("/media/film.mkv")
	require.NoError(t, err)

	assert.Equal(t, "matroska,webm", output.Format.FormatName)
	require.Len(t, output.Streams, 2)

	video := output.FirstVideoStream()
	require.NotNil(t, video)
	assert.Equal(t, "hevc", video.CodecName)
	assert.Equal(t, 2160, video.Height)
	require.Len(t, video.SideDataList, 1)

	audio := output.FirstAudioStream()
	require.NotNil(t, audio)
	assert.Equal(t, 8, audio.Channels)
}

func TestProbePassesMandatoryArguments(t *testing.T) {
	// The script echoes its arguments back as the "format_name" so the test can
	// assert the fixed argument profile.
	script := writeScript(t, `printf '{"format":{"format_name":"%s"},"streams":[]}' "$*"`)
	runner := newTestRunner(t, script, 0)

	output, err := runner.Probe("/media/film.mkv")
	require.NoError(t, err)

	args := output.Format.FormatName
	assert.Contains(t, args, "-v quiet")
	assert.Contains(t, args, "-print_format json")
	assert.Contains(t, args, "-show_format")
	assert.Contains(t, args, "-show_streams")
	assert.Contains(t, args, "-probesize 5000000")
	assert.Contains(t, args, "-analyzeduration 5000000")
	assert.Contains(t, args, "/media/film.mkv")
}

func TestProbeNonZeroExit(t *testing.T) {
	script := writeScript(t, `echo "boom: no such file" >&2; exit 1`)
	runner := newTestRunner(t, script, 0)

	_, err := runner.Probe("/media/missing.mkv")
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, KindNonZeroExit, perr.Kind)
	assert.Equal(t, 1, perr.ExitCode)
	assert.Contains(t, perr.Stderr, "boom")
	assert.Equal(t, "/media/missing.mkv", perr.Path)
}

func TestProbeParseError(t *testing.T) {
	script := writeScript(t, `echo "this is not json"`)
	runner := newTestRunner(t, script, 0)

	_, err := runner.Probe("/media/film.mkv")
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, KindParseError, perr.Kind)
}

func TestProbeTimeoutKillsProcess(t *testing.T) {
	script := writeScript(t, `sleep 30`)
	runner := newTestRunner(t, script, 200*time.Millisecond)

	started := time.Now()
	_, err := runner.Probe("/media/huge.mkv")
	elapsed := time.Since(started)

	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, KindTimeout, perr.Kind)
	assert.Equal(t, "/media/huge.mkv", perr.Path)
	assert.Less(t, elapsed, 5*time.Second, "timed-out probe should return promptly")
}

func TestProbeNotFound(t *testing.T) {
	for _, conventional := range candidatePaths {
		if _, err := os.Stat(conventional); err == nil {
			t.Skipf("ffprobe present at %s", conventional)
		}
	}
	runner := newTestRunner(t, filepath.Join(t.TempDir(), "nonexistent"), 0)
	// PATH fallback may still find a real ffprobe; force an empty PATH.
	t.Setenv("PATH", t.TempDir())

	_, err := runner.Probe("/media/film.mkv")
	var perr *Error
	if errors.As(err, &perr) {
		assert.Equal(t, KindNotFound, perr.Kind)
	} else {
		t.Fatalf("expected probe error, got %v", err)
	}
	assert.False(t, runner.Available())
}

func TestBinaryResolutionPrefersConfiguredPath(t *testing.T) {
	script := writeScript(t, `echo '{"format":{},"streams":[]}'`)
	runner := newTestRunner(t, script, 0)

	path, err := runner.BinaryPath()
	require.NoError(t, err)
	assert.Equal(t, script, path)
	assert.True(t, runner.Available())

	// Resolution is cached.
	again, err := runner.BinaryPath()
	require.NoError(t, err)
	assert.Equal(t, path, again)
}

func TestStderrTailTruncates(t *testing.T) {
	long := ""
	for i := 0; i < 100; i++ {
		long += fmt.Sprintf("line %d of noisy stderr output\n", i)
	}
	tail := stderrTail(long)
	assert.LessOrEqual(t, len(tail), 512)
	assert.Contains(t, tail, "line 99")
}
