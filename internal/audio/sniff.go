package audio

import "bytes"

// Container is a coarse content-type classification derived from magic
// bytes, used both to pick an ffmpeg -f hint for ambiguous pipe input and
// to satisfy the orchestrator's format validation gate (spec §4.8 step 2).
type Container string

const (
	ContainerWebM    Container = "webm"
	ContainerOgg     Container = "ogg"
	ContainerMPEG    Container = "mpeg" // mp3
	ContainerMP4     Container = "mp4"
	ContainerWAV     Container = "wav"
	ContainerUnknown Container = ""
)

// Sniff inspects the first bytes of an upload and classifies its
// container, without attempting a full parse. Mirrors the lightweight
// magic-byte checks scattered through the corpus's container/demux
// readers (e.g. RIFF/EBML/OggS headers) rather than pulling in a full
// format-detection library for a handful of signatures.
func Sniff(data []byte) Container {
	switch {
	case len(data) >= 4 && bytes.Equal(data[0:4], []byte{0x1A, 0x45, 0xDF, 0xA3}):
		return ContainerWebM // EBML header, shared by WebM/Matroska
	case len(data) >= 4 && bytes.Equal(data[0:4], []byte("OggS")):
		return ContainerOgg
	case len(data) >= 12 && bytes.Equal(data[4:8], []byte("ftyp")):
		return ContainerMP4
	case len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return ContainerWAV
	case len(data) >= 3 && bytes.Equal(data[0:3], []byte("ID3")):
		return ContainerMPEG
	case len(data) >= 2 && data[0] == 0xFF && (data[1]&0xE0) == 0xE0:
		return ContainerMPEG // bare MPEG frame sync, no ID3 tag
	default:
		return ContainerUnknown
	}
}

// ffmpegFormatHint maps a sniffed container to the demuxer name ffmpeg
// expects on -f when reading from a pipe, where that differs from the
// container tag itself.
func ffmpegFormatHint(c Container) string {
	switch c {
	case ContainerMPEG:
		return "mp3"
	case ContainerMP4:
		return "mp4"
	default:
		return string(c)
	}
}
