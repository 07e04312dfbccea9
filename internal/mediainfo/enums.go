// Package mediainfo interprets probe output into normalized video metadata:
// codec and container identification, HDR format classification, and
// immersive-audio detection.
package mediainfo

import (
	"path/filepath"
	"strings"
)

// VideoCodec is the normalized video codec vocabulary. Values are stored in
// the catalog as their raw string.
type VideoCodec string

const (
	VideoH264    VideoCodec = "h264"
	VideoHEVC    VideoCodec = "hevc"
	VideoVP9     VideoCodec = "vp9"
	VideoAV1     VideoCodec = "av1"
	VideoProRes  VideoCodec = "prores"
	VideoDNxHD   VideoCodec = "dnxhd"
	VideoMPEG2   VideoCodec = "mpeg2video"
	VideoMPEG4   VideoCodec = "mpeg4"
	VideoVP8     VideoCodec = "vp8"
	VideoWMV3    VideoCodec = "wmv3"
	VideoVC1     VideoCodec = "vc1"
	VideoMJPEG   VideoCodec = "mjpeg"
	VideoUnknown VideoCodec = "unknown"
)

// videoCodecAliases maps common ffprobe spellings onto the canonical values.
var videoCodecAliases = map[string]VideoCodec{
	"h264":       VideoH264,
	"avc":        VideoH264,
	"avc1":       VideoH264,
	"hevc":       VideoHEVC,
	"h265":       VideoHEVC,
	"hev1":       VideoHEVC,
	"hvc1":       VideoHEVC,
	"vp9":        VideoVP9,
	"vp09":       VideoVP9,
	"av1":        VideoAV1,
	"av01":       VideoAV1,
	"prores":     VideoProRes,
	"dnxhd":      VideoDNxHD,
	"mpeg2video": VideoMPEG2,
	"mpeg2":      VideoMPEG2,
	"mpeg4":      VideoMPEG4,
	"mp4v":       VideoMPEG4,
	"vp8":        VideoVP8,
	"wmv3":       VideoWMV3,
	"vc1":        VideoVC1,
	"vc-1":       VideoVC1,
	"mjpeg":      VideoMJPEG,
	"mjpg":       VideoMJPEG,
}

// NormalizeVideoCodec maps an ffprobe codec name onto the canonical vocabulary.
func NormalizeVideoCodec(name string) VideoCodec {
	if codec, ok := videoCodecAliases[strings.ToLower(strings.TrimSpace(name))]; ok {
		return codec
	}
	return VideoUnknown
}

// HDRFormat classifies the HDR mastering of a video stream.
type HDRFormat string

const (
	HDRNone             HDRFormat = "sdr"
	HDR10               HDRFormat = "hdr10"
	HDR10Plus           HDRFormat = "hdr10plus"
	HDRDolbyVision      HDRFormat = "dolby_vision"
	HDRHLG              HDRFormat = "hlg"
	HDRDolbyVisionHDR10 HDRFormat = "dolby_vision_hdr10"
)

// AudioCodec is the normalized audio codec vocabulary.
type AudioCodec string

const (
	AudioAAC     AudioCodec = "aac"
	AudioAC3     AudioCodec = "ac3"
	AudioEAC3    AudioCodec = "eac3"
	AudioTrueHD  AudioCodec = "truehd"
	AudioDTS     AudioCodec = "dts"
	AudioDTSHD   AudioCodec = "dts-hd"
	AudioFLAC    AudioCodec = "flac"
	AudioOpus    AudioCodec = "opus"
	AudioVorbis  AudioCodec = "vorbis"
	AudioMP3     AudioCodec = "mp3"
	AudioPCM     AudioCodec = "pcm"
	AudioALAC    AudioCodec = "alac"
	AudioWMA     AudioCodec = "wma"
	AudioUnknown AudioCodec = "unknown"
)

// NormalizeAudioCodec maps an ffprobe audio codec name and profile onto the
// canonical vocabulary. DTS-HD variants report codec_name "dts" with an HD
// profile, so the profile participates in the mapping.
func NormalizeAudioCodec(name, profile string) AudioCodec {
	name = strings.ToLower(strings.TrimSpace(name))
	profile = strings.ToLower(profile)

	switch {
	case name == "aac":
		return AudioAAC
	case name == "ac3":
		return AudioAC3
	case name == "eac3" || name == "ec-3":
		return AudioEAC3
	case name == "truehd":
		return AudioTrueHD
	case name == "dts":
		if strings.Contains(profile, "dts-hd") || strings.Contains(profile, "ma") {
			return AudioDTSHD
		}
		return AudioDTS
	case name == "dtshd" || name == "dts-hd":
		return AudioDTSHD
	case name == "flac":
		return AudioFLAC
	case name == "opus":
		return AudioOpus
	case name == "vorbis":
		return AudioVorbis
	case name == "mp3" || name == "mp3float":
		return AudioMP3
	case strings.HasPrefix(name, "pcm"):
		return AudioPCM
	case name == "alac":
		return AudioALAC
	case strings.HasPrefix(name, "wma"):
		return AudioWMA
	default:
		return AudioUnknown
	}
}

// Container is the normalized container format vocabulary.
type Container string

const (
	ContainerMKV     Container = "mkv"
	ContainerMP4     Container = "mp4"
	ContainerMOV     Container = "mov"
	ContainerAVI     Container = "avi"
	ContainerWMV     Container = "wmv"
	ContainerWebM    Container = "webm"
	ContainerFLV     Container = "flv"
	ContainerM4V     Container = "m4v"
	ContainerTS      Container = "ts"
	ContainerMTS     Container = "mts"
	ContainerM2TS    Container = "m2ts"
	ContainerVOB     Container = "vob"
	ContainerMPG     Container = "mpg"
	ContainerUnknown Container = "unknown"
)

// containerByFormat matches ffprobe format_name substrings, in priority order.
// Matroska must precede webm because ffprobe reports "matroska,webm" for both.
var containerByFormat = []struct {
	substr    string
	container Container
}{
	{"matroska", ContainerMKV},
	{"webm", ContainerWebM},
	{"quicktime", ContainerMOV},
	{"m4v", ContainerM4V},
	{"mp4", ContainerMP4},
	{"avi", ContainerAVI},
	{"asf", ContainerWMV},
	{"flv", ContainerFLV},
	{"mpegts", ContainerTS},
	{"vob", ContainerVOB},
	{"mpeg", ContainerMPG},
}

// containerByExtension is the extension fallback when the format name is
// unrecognized.
var containerByExtension = map[string]Container{
	".mkv":  ContainerMKV,
	".mp4":  ContainerMP4,
	".mov":  ContainerMOV,
	".avi":  ContainerAVI,
	".wmv":  ContainerWMV,
	".webm": ContainerWebM,
	".flv":  ContainerFLV,
	".m4v":  ContainerM4V,
	".ts":   ContainerTS,
	".mts":  ContainerMTS,
	".m2ts": ContainerM2TS,
	".vob":  ContainerVOB,
	".mpg":  ContainerMPG,
	".mpeg": ContainerMPG,
}

// NormalizeContainer maps the probe's format name onto the container
// vocabulary, falling back to the file extension when no substring matches.
func NormalizeContainer(formatName, filePath string) Container {
	name := strings.ToLower(formatName)
	ext := strings.ToLower(filepath.Ext(filePath))

	// ffprobe reports family names ("matroska,webm", "mov,mp4,m4a,3gp,3g2,mj2")
	// that cover several containers; let the extension pick the member when
	// it can.
	if strings.Contains(name, "matroska") || strings.Contains(name, "mp4") ||
		strings.Contains(name, "mov") || strings.Contains(name, "quicktime") {
		if c, ok := containerByExtension[ext]; ok {
			return c
		}
	}

	for _, entry := range containerByFormat {
		if strings.Contains(name, entry.substr) {
			return entry.container
		}
	}
	if c, ok := containerByExtension[ext]; ok {
		return c
	}
	return ContainerUnknown
}

// SupportedExtensions is the discovery extension set, lowercase without dots.
var SupportedExtensions = map[string]bool{
	"mkv": true, "mp4": true, "mov": true, "avi": true, "wmv": true,
	"webm": true, "flv": true, "m4v": true, "ts": true, "mts": true,
	"m2ts": true, "vob": true, "mpg": true, "mpeg": true, "m2v": true,
	"3gp": true, "ogv": true, "divx": true, "rm": true, "rmvb": true,
	"asf": true,
}

// IsSupportedVideoFile reports whether the path carries a supported video
// extension (case-insensitive).
func IsSupportedVideoFile(path string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	return SupportedExtensions[ext]
}

// ResolutionCategory names a coarse band of image height.
type ResolutionCategory string

const (
	Resolution8K    ResolutionCategory = "8K"
	Resolution4K    ResolutionCategory = "4K"
	Resolution1440p ResolutionCategory = "1440p"
	Resolution1080p ResolutionCategory = "1080p"
	Resolution720p  ResolutionCategory = "720p"
	Resolution480p  ResolutionCategory = "480p"
	Resolution360p  ResolutionCategory = "360p"
	ResolutionSD    ResolutionCategory = "SD"
)

// resolutionBands is ordered highest first; lower bound inclusive, upper
// bound exclusive.
var resolutionBands = []struct {
	category ResolutionCategory
	min      int
}{
	{Resolution8K, 4320},
	{Resolution4K, 2160},
	{Resolution1440p, 1440},
	{Resolution1080p, 1080},
	{Resolution720p, 720},
	{Resolution480p, 480},
	{Resolution360p, 360},
	{ResolutionSD, 0},
}

// CategorizeHeight maps a frame height onto its resolution band. Every
// non-negative height maps to exactly one band.
func CategorizeHeight(height int) ResolutionCategory {
	for _, band := range resolutionBands {
		if height >= band.min {
			return band.category
		}
	}
	return ResolutionSD
}

// HeightRange returns the [min, max) height bounds of a band. A max of 0
// means unbounded.
func HeightRange(category ResolutionCategory) (min, max int, ok bool) {
	for i, band := range resolutionBands {
		if band.category == category {
			if i == 0 {
				return band.min, 0, true
			}
			return band.min, resolutionBands[i-1].min, true
		}
	}
	return 0, 0, false
}

// AllResolutionCategories lists every band, highest first.
func AllResolutionCategories() []ResolutionCategory {
	out := make([]ResolutionCategory, len(resolutionBands))
	for i, band := range resolutionBands {
		out[i] = band.category
	}
	return out
}
