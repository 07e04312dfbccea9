package mediainfo

import (
	"testing"

	"github.com/bytePatrol/Media-Folder-Visualizer/internal/probe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func videoOutput(stream probe.Stream) *probe.Output {
	stream.CodecType = "video"
	return &probe.Output{
		Format:  probe.Format{FormatName: "matroska,webm", Duration: "3600.5"},
		Streams: []probe.Stream{stream},
	}
}

func TestParseSelectsFirstVideoStream(t *testing.T) {
	output := &probe.Output{
		Format: probe.Format{FormatName: "matroska,webm"},
		Streams: []probe.Stream{
			{CodecType: "audio", CodecName: "aac"},
			{CodecType: "video", CodecName: "hevc", Width: 3840, Height: 2160},
			{CodecType: "video", CodecName: "mjpeg", Width: 600, Height: 800}, // cover art
		},
	}

	meta := Parse(output, "/movies/film.mkv", 1000)
	assert.Equal(t, VideoHEVC, meta.VideoCodec)
	require.NotNil(t, meta.Width)
	assert.Equal(t, 3840, *meta.Width)
}

func TestParseHDR10(t *testing.T) {
	// A 4K HDR10 file: PQ transfer plus BT.2020 primaries.
	output := videoOutput(probe.Stream{
		CodecName:        "hevc",
		Width:            3840,
		Height:           2160,
		ColorTransfer:    "smpte2084",
		ColorPrimaries:   "bt2020nc",
		BitsPerRawSample: "10",
	})

	meta := Parse(output, "/movies/film.mkv", 1000)
	assert.Equal(t, HDR10, meta.HDRFormat)
	assert.Equal(t, VideoHEVC, meta.VideoCodec)
	require.NotNil(t, meta.Height)
	assert.Equal(t, Resolution4K, CategorizeHeight(*meta.Height))
	require.NotNil(t, meta.BitDepth)
	assert.Equal(t, 10, *meta.BitDepth)
}

func TestParseHDRPriorityOrder(t *testing.T) {
	tests := []struct {
		name   string
		stream probe.Stream
		want   HDRFormat
	}{
		{
			name: "dolby vision over PQ base layer",
			stream: probe.Stream{
				ColorTransfer: "smpte2084",
				SideDataList:  []probe.SideData{{SideDataType: "DOVI configuration record"}},
			},
			want: HDRDolbyVisionHDR10,
		},
		{
			name: "dolby vision without PQ",
			stream: probe.Stream{
				ColorTransfer: "bt709",
				SideDataList:  []probe.SideData{{SideDataType: "DOVI configuration record"}},
			},
			want: HDRDolbyVision,
		},
		{
			name: "hdr10plus side data beats plain hdr10",
			stream: probe.Stream{
				ColorTransfer:  "smpte2084",
				ColorPrimaries: "bt2020",
				SideDataList:   []probe.SideData{{SideDataType: "HDR Dynamic Metadata SMPTE2094-40 (HDR10+)"}},
			},
			want: HDR10Plus,
		},
		{
			name:   "hlg",
			stream: probe.Stream{ColorTransfer: "arib-std-b67"},
			want:   HDRHLG,
		},
		{
			name:   "pq without wide gamut or depth is sdr",
			stream: probe.Stream{ColorTransfer: "smpte2084", ColorPrimaries: "bt709"},
			want:   HDRNone,
		},
		{
			name:   "pq with missing primaries but 10-bit counts as hdr10",
			stream: probe.Stream{ColorTransfer: "smpte2084", BitsPerRawSample: "10"},
			want:   HDR10,
		},
		{
			name:   "ten bit alone is not hdr",
			stream: probe.Stream{ColorTransfer: "bt709", PixFmt: "yuv420p10le"},
			want:   HDRNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta := Parse(videoOutput(tt.stream), "/x.mkv", 1)
			assert.Equal(t, tt.want, meta.HDRFormat)
		})
	}
}

func TestParseBitDepthFromPixFmt(t *testing.T) {
	tests := []struct {
		pixFmt string
		want   int
	}{
		{"yuv420p10le", 10},
		{"p010le", 10},
		{"yuv422p12be", 12},
	}
	for _, tt := range tests {
		meta := Parse(videoOutput(probe.Stream{CodecName: "hevc", PixFmt: tt.pixFmt}), "/x.mkv", 1)
		require.NotNil(t, meta.BitDepth, tt.pixFmt)
		assert.Equal(t, tt.want, *meta.BitDepth)
	}

	meta := Parse(videoOutput(probe.Stream{CodecName: "h264", PixFmt: "yuv420p"}), "/x.mkv", 1)
	assert.Nil(t, meta.BitDepth)
}

func TestParseFrameRate(t *testing.T) {
	tests := []struct {
		name   string
		stream probe.Stream
		want   float64
	}{
		{"average preferred", probe.Stream{AvgFrameRate: "24000/1001", RFrameRate: "25/1"}, 23.976},
		{"real as fallback", probe.Stream{AvgFrameRate: "0/0", RFrameRate: "25/1"}, 25},
		{"plain float", probe.Stream{AvgFrameRate: "29.97"}, 29.97},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta := Parse(videoOutput(tt.stream), "/x.mkv", 1)
			require.NotNil(t, meta.FrameRate)
			assert.InDelta(t, tt.want, *meta.FrameRate, 0.001)
		})
	}

	meta := Parse(videoOutput(probe.Stream{AvgFrameRate: "garbage"}), "/x.mkv", 1)
	assert.Nil(t, meta.FrameRate)
}

func TestParseBitRatePrefersStream(t *testing.T) {
	output := videoOutput(probe.Stream{CodecName: "h264", BitRate: "8000000"})
	output.Format.BitRate = "9000000"
	meta := Parse(output, "/x.mkv", 1)
	require.NotNil(t, meta.BitRate)
	assert.Equal(t, int64(8000000), *meta.BitRate)

	output = videoOutput(probe.Stream{CodecName: "h264"})
	output.Format.BitRate = "9000000"
	meta = Parse(output, "/x.mkv", 1)
	require.NotNil(t, meta.BitRate)
	assert.Equal(t, int64(9000000), *meta.BitRate)
}

func withAudio(video *probe.Output, audio probe.Stream) *probe.Output {
	audio.CodecType = "audio"
	video.Streams = append(video.Streams, audio)
	return video
}

func TestAtmosDetection(t *testing.T) {
	tests := []struct {
		name  string
		audio probe.Stream
		want  bool
	}{
		{"profile marker", probe.Stream{CodecName: "truehd", Profile: "Dolby TrueHD + Dolby Atmos", Channels: 6}, true},
		{"eac3 long name marker", probe.Stream{CodecName: "eac3", CodecLongName: "Dolby Digital Plus + Dolby Atmos", Channels: 6}, true},
		{"track title marker", probe.Stream{CodecName: "truehd", Channels: 6, Tags: map[string]string{"title": "TrueHD 7.1 Atmos"}}, true},
		{"truehd 8ch heuristic", probe.Stream{CodecName: "truehd", CodecLongName: "TrueHD", Channels: 8}, true},
		{"truehd 6ch no marker", probe.Stream{CodecName: "truehd", Channels: 6}, false},
		{"eac3 8ch no marker", probe.Stream{CodecName: "eac3", Channels: 8}, false},
		{"aac never atmos", probe.Stream{CodecName: "aac", Profile: "atmos", Channels: 8}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta := Parse(withAudio(videoOutput(probe.Stream{CodecName: "hevc"}), tt.audio), "/x.mkv", 1)
			assert.Equal(t, tt.want, meta.IsAtmos)
			if meta.IsAtmos {
				assert.Contains(t, []AudioCodec{AudioTrueHD, AudioEAC3}, meta.AudioCodec)
			}
		})
	}
}

func TestDTSXDetection(t *testing.T) {
	tests := []struct {
		name  string
		audio probe.Stream
		want  bool
	}{
		{"profile marker", probe.Stream{CodecName: "dts", Profile: "DTS-HD MA + DTS:X", Channels: 8}, true},
		{"long name marker", probe.Stream{CodecName: "dts", Profile: "DTS-HD MA", CodecLongName: "DTS-X", Channels: 8}, true},
		{"title marker", probe.Stream{CodecName: "dts", Profile: "DTS-HD MA", Channels: 8, Tags: map[string]string{"title": "DTSX 7.1.4"}}, true},
		{"no heuristic for channel count", probe.Stream{CodecName: "dts", Profile: "DTS-HD MA", Channels: 8}, false},
		{"truehd never dtsx", probe.Stream{CodecName: "truehd", Profile: "dts:x", Channels: 8}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta := Parse(withAudio(videoOutput(probe.Stream{CodecName: "hevc"}), tt.audio), "/x.mkv", 1)
			assert.Equal(t, tt.want, meta.IsDTSX)
			if meta.IsDTSX {
				assert.Contains(t, []AudioCodec{AudioDTS, AudioDTSHD}, meta.AudioCodec)
			}
		})
	}
}

func TestChannelLayoutInference(t *testing.T) {
	tests := []struct {
		layout string
		want   int
	}{
		{"7.1", 8},
		{"octagonal", 8},
		{"5.1(side)", 6},
		{"hexagonal", 6},
		{"stereo", 2},
		{"mono", 1},
		{"quad", 4},
		{"something else", 2},
	}
	for _, tt := range tests {
		meta := Parse(withAudio(videoOutput(probe.Stream{CodecName: "hevc"}),
			probe.Stream{CodecName: "aac", ChannelLayout: tt.layout}), "/x.mkv", 1)
		require.NotNil(t, meta.AudioChannels, tt.layout)
		assert.Equal(t, tt.want, *meta.AudioChannels, tt.layout)
	}

	// Explicit channel count wins over layout.
	meta := Parse(withAudio(videoOutput(probe.Stream{CodecName: "hevc"}),
		probe.Stream{CodecName: "aac", Channels: 6, ChannelLayout: "stereo"}), "/x.mkv", 1)
	assert.Equal(t, 6, *meta.AudioChannels)
}

func TestNormalizeVideoCodecAliases(t *testing.T) {
	tests := map[string]VideoCodec{
		"avc":   VideoH264,
		"h265":  VideoHEVC,
		"av01":  VideoAV1,
		"mp4v":  VideoMPEG4,
		"vc-1":  VideoVC1,
		"mjpg":  VideoMJPEG,
		"weird": VideoUnknown,
	}
	for alias, want := range tests {
		assert.Equal(t, want, NormalizeVideoCodec(alias), alias)
	}
}

func TestNormalizeContainer(t *testing.T) {
	tests := []struct {
		format string
		path   string
		want   Container
	}{
		{"matroska,webm", "/a.mkv", ContainerMKV},
		{"matroska,webm", "/a.webm", ContainerWebM},
		{"mov,mp4,m4a,3gp,3g2,mj2", "/a.mp4", ContainerMP4},
		{"mov,mp4,m4a,3gp,3g2,mj2", "/a.mov", ContainerMOV},
		{"mov,mp4,m4a,3gp,3g2,mj2", "/a.m4v", ContainerM4V},
		{"avi", "/a.avi", ContainerAVI},
		{"mpegts", "/a.ts", ContainerTS},
		{"unheard-of", "/a.m2ts", ContainerM2TS},
		{"unheard-of", "/a.xyz", ContainerUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeContainer(tt.format, tt.path), tt.format+" "+tt.path)
	}
}

func TestResolutionBands(t *testing.T) {
	tests := []struct {
		height int
		want   ResolutionCategory
	}{
		{4320, Resolution8K},
		{4319, Resolution4K},
		{2160, Resolution4K},
		{2159, Resolution1440p},
		{1440, Resolution1440p},
		{1080, Resolution1080p},
		{1079, Resolution720p},
		{720, Resolution720p},
		{480, Resolution480p},
		{360, Resolution360p},
		{240, ResolutionSD},
		{0, ResolutionSD},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CategorizeHeight(tt.height), "height %d", tt.height)
	}

	// Every band reports a coherent height range.
	for _, category := range AllResolutionCategories() {
		min, max, ok := HeightRange(category)
		require.True(t, ok)
		assert.Equal(t, category, CategorizeHeight(min))
		if max > 0 {
			assert.NotEqual(t, category, CategorizeHeight(max))
		}
	}
}

func TestParseDurationAndFileFields(t *testing.T) {
	output := videoOutput(probe.Stream{CodecName: "h264"})
	meta := Parse(output, "/library/show/episode.mkv", 123456)

	assert.Equal(t, "/library/show/episode.mkv", meta.FilePath)
	assert.Equal(t, "episode.mkv", meta.FileName)
	assert.Equal(t, uint64(123456), meta.FileSize)
	require.NotNil(t, meta.DurationSeconds)
	assert.InDelta(t, 3600.5, *meta.DurationSeconds, 0.001)
}

func TestIsSupportedVideoFile(t *testing.T) {
	assert.True(t, IsSupportedVideoFile("/x/MOVIE.MKV"))
	assert.True(t, IsSupportedVideoFile("/x/clip.3gp"))
	assert.False(t, IsSupportedVideoFile("/x/notes.txt"))
	assert.False(t, IsSupportedVideoFile("/x/noext"))
}
