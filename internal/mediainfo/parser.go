package mediainfo

import (
	"strconv"
	"strings"

	"github.com/bytePatrol/Media-Folder-Visualizer/internal/probe"
)

// VideoMetadata is the normalized record produced from one probe output.
type VideoMetadata struct {
	FilePath        string
	FileName        string
	FileSize        uint64
	DurationSeconds *float64
	VideoCodec      VideoCodec
	Width           *int
	Height          *int
	FrameRate       *float64
	BitRate         *int64
	BitDepth        *int
	HDRFormat       HDRFormat
	AudioCodec      AudioCodec
	AudioChannels   *int
	IsAtmos         bool
	IsDTSX          bool
	Container       Container
}

// Parse interprets a probe record plus filesystem stats into normalized video
// metadata. It is a pure function; all heuristics live here.
func Parse(output *probe.Output, filePath string, fileSize uint64) VideoMetadata {
	meta := VideoMetadata{
		FilePath:   filePath,
		FileName:   baseName(filePath),
		FileSize:   fileSize,
		VideoCodec: VideoUnknown,
		HDRFormat:  HDRNone,
		AudioCodec: AudioUnknown,
		Container:  NormalizeContainer(output.Format.FormatName, filePath),
	}

	if d, err := strconv.ParseFloat(output.Format.Duration, 64); err == nil && d > 0 {
		meta.DurationSeconds = &d
	}

	if video := output.FirstVideoStream(); video != nil {
		meta.VideoCodec = NormalizeVideoCodec(video.CodecName)
		if video.Width > 0 {
			w := video.Width
			meta.Width = &w
		}
		if video.Height > 0 {
			h := video.Height
			meta.Height = &h
		}
		meta.FrameRate = resolveFrameRate(video)
		meta.BitRate = resolveBitRate(video.BitRate, output.Format.BitRate)
		meta.BitDepth = resolveBitDepth(video)
		meta.HDRFormat = classifyHDR(video, meta.BitDepth)
	}

	if audio := output.FirstAudioStream(); audio != nil {
		meta.AudioCodec = NormalizeAudioCodec(audio.CodecName, audio.Profile)
		channels := resolveChannels(audio)
		meta.AudioChannels = &channels
		meta.IsAtmos = detectAtmos(audio, meta.AudioCodec, channels)
		meta.IsDTSX = detectDTSX(audio, meta.AudioCodec)
	}

	return meta
}

func baseName(path string) string {
	if idx := strings.LastIndexAny(path, "/\\"); idx >= 0 {
		return path[idx+1:]
	}
	return path
}

// resolveBitRate prefers the stream's reported bitrate over the container's.
func resolveBitRate(streamBitRate, formatBitRate string) *int64 {
	for _, raw := range []string{streamBitRate, formatBitRate} {
		if raw == "" {
			continue
		}
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil && v > 0 {
			return &v
		}
	}
	return nil
}

// resolveFrameRate prefers avg_frame_rate over r_frame_rate. Values arrive as
// "num/den" rationals; a plain float is accepted as a last resort.
func resolveFrameRate(video *probe.Stream) *float64 {
	for _, raw := range []string{video.AvgFrameRate, video.RFrameRate} {
		if raw == "" || raw == "0/0" {
			continue
		}
		if num, den, ok := strings.Cut(raw, "/"); ok {
			n, errN := strconv.ParseFloat(num, 64)
			d, errD := strconv.ParseFloat(den, 64)
			if errN == nil && errD == nil && d != 0 {
				rate := n / d
				if rate > 0 {
					return &rate
				}
			}
			continue
		}
		if rate, err := strconv.ParseFloat(raw, 64); err == nil && rate > 0 {
			return &rate
		}
	}
	return nil
}

// resolveBitDepth tries the explicit bits_per_raw_sample field, then infers
// from the pixel format name.
func resolveBitDepth(video *probe.Stream) *int {
	if video.BitsPerRawSample != "" {
		if depth, err := strconv.Atoi(video.BitsPerRawSample); err == nil && depth > 0 {
			return &depth
		}
	}

	pixFmt := strings.ToLower(video.PixFmt)
	switch {
	case strings.Contains(pixFmt, "10le"), strings.Contains(pixFmt, "10be"), strings.Contains(pixFmt, "p010"):
		depth := 10
		return &depth
	case strings.Contains(pixFmt, "12le"), strings.Contains(pixFmt, "12be"):
		depth := 12
		return &depth
	}
	return nil
}

// classifyHDR applies the priority-ordered HDR rules; the highest match wins.
// Bit depth alone is never sufficient evidence (10-bit SDR exists).
func classifyHDR(video *probe.Stream, bitDepth *int) HDRFormat {
	transfer := strings.ToLower(video.ColorTransfer)
	primaries := strings.ToLower(video.ColorPrimaries)
	isPQ := strings.Contains(transfer, "smpte2084") || strings.Contains(transfer, "pq")

	if hasSideData(video, "dolby vision") || hasSideData(video, "dovi") {
		// A DV track over a PQ base layer is the dual-layer profile common in
		// streaming; it plays as HDR10 on non-DV displays.
		if isPQ {
			return HDRDolbyVisionHDR10
		}
		return HDRDolbyVision
	}

	if hasSideData(video, "hdr10+") || hasSideData(video, "hdr dynamic metadata") {
		return HDR10Plus
	}

	if strings.Contains(transfer, "arib-std-b67") || strings.Contains(transfer, "hlg") {
		return HDRHLG
	}

	wideGamut := strings.Contains(primaries, "bt2020") || strings.Contains(primaries, "2020")
	if isPQ && wideGamut {
		return HDR10
	}
	// Guard against incomplete metadata: some rips carry PQ transfer and a
	// 10+ bit format but omit primaries entirely.
	if isPQ && primaries == "" && bitDepth != nil && *bitDepth >= 10 {
		return HDR10
	}

	return HDRNone
}

func hasSideData(stream *probe.Stream, substr string) bool {
	for _, sd := range stream.SideDataList {
		if strings.Contains(strings.ToLower(sd.SideDataType), substr) {
			return true
		}
	}
	return false
}

// resolveChannels uses the reported channel count when present, else infers
// from the layout string.
func resolveChannels(audio *probe.Stream) int {
	if audio.Channels > 0 {
		return audio.Channels
	}

	layout := strings.ToLower(audio.ChannelLayout)
	switch {
	case strings.Contains(layout, "7.1"), strings.Contains(layout, "octagonal"):
		return 8
	case strings.Contains(layout, "5.1"), strings.Contains(layout, "hexagonal"):
		return 6
	case strings.Contains(layout, "stereo"):
		return 2
	case strings.Contains(layout, "mono"):
		return 1
	case strings.Contains(layout, "quad"):
		return 4
	default:
		return 2
	}
}

// detectAtmos looks for Atmos markers on TrueHD and E-AC-3 streams. The
// TrueHD >= 8 channel heuristic catches masters where the Atmos flag is
// absent but the bed is present.
func detectAtmos(audio *probe.Stream, codec AudioCodec, channels int) bool {
	if codec != AudioTrueHD && codec != AudioEAC3 {
		return false
	}

	if containsFold(audio.Profile, "atmos") || containsFold(audio.CodecLongName, "atmos") {
		return true
	}
	for _, sd := range audio.SideDataList {
		t := strings.ToLower(sd.SideDataType)
		if strings.Contains(t, "atmos") || strings.Contains(t, "dolby") {
			return true
		}
	}
	if title, ok := audio.Tags["title"]; ok && containsFold(title, "atmos") {
		return true
	}

	return codec == AudioTrueHD && channels >= 8
}

// detectDTSX looks for DTS:X markers on DTS / DTS-HD streams. Explicit
// metadata is required; there is no channel heuristic.
func detectDTSX(audio *probe.Stream, codec AudioCodec) bool {
	if codec != AudioDTS && codec != AudioDTSHD {
		return false
	}

	profile := strings.ToLower(audio.Profile)
	if hasDTSXMarker(profile) {
		return true
	}
	// "DTS-HD MA + DTS:X" style profiles sometimes shorten the marker to a
	// bare X suffix.
	if strings.Contains(profile, "dts-hd ma") && (strings.Contains(profile, "+ x") || strings.HasSuffix(profile, " x")) {
		return true
	}
	if hasDTSXMarker(strings.ToLower(audio.CodecLongName)) {
		return true
	}
	if title, ok := audio.Tags["title"]; ok && hasDTSXMarker(strings.ToLower(title)) {
		return true
	}
	return false
}

func hasDTSXMarker(s string) bool {
	return strings.Contains(s, "dts:x") || strings.Contains(s, "dts-x") || strings.Contains(s, "dtsx")
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), needle)
}
