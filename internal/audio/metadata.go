package audio

import (
	"bytes"
	"context"
	"os/exec"

	"github.com/tidwall/gjson"

	"github.com/MacPhobos/audio-ident-sub001/internal/apperr"
)

// Metadata is the tag-reader output consumed by the ingestion pipeline
// (spec §4.5 step 3): title/artist/album plus the technical attributes
// stored on the Track row.
type Metadata struct {
	Title      string
	Artist     string
	Album      string
	Genre      string
	DurationS  float64
	SampleRate int
	Channels   int
	BitrateBps int
	Format     string
}

// ProbeMetadata shells out to ffprobe (the teacher's wav.GetAudioDuration
// does the same for duration alone; this generalizes it to the full tag
// set ffprobe -show_format/-show_streams exposes) and parses the JSON
// response with gjson rather than encoding/json, since only a handful of
// scalar fields are needed out of a much larger document.
func ProbeMetadata(ctx context.Context, input []byte) (Metadata, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-hide_banner", "-loglevel", "error",
		"-show_format", "-show_streams",
		"-of", "json",
		"-i", "pipe:0",
	)
	cmd.Stdin = bytes.NewReader(input)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return Metadata{}, apperr.New(apperr.CodeDecodeFailed, "failed to probe audio metadata", err)
	}

	doc := stdout.String()
	md := Metadata{
		Title:  gjson.Get(doc, `format.tags.title`).String(),
		Artist: gjson.Get(doc, `format.tags.artist`).String(),
		Album:  gjson.Get(doc, `format.tags.album`).String(),
		Genre:  gjson.Get(doc, `format.tags.genre`).String(),
		Format: gjson.Get(doc, `format.format_name`).String(),
	}
	md.DurationS = gjson.Get(doc, `format.duration`).Float()
	md.BitrateBps = int(gjson.Get(doc, `format.bit_rate`).Int())

	streams := gjson.Get(doc, `streams`).Array()
	for _, s := range streams {
		if s.Get("codec_type").String() != "audio" {
			continue
		}
		md.SampleRate = int(s.Get("sample_rate").Int())
		md.Channels = int(s.Get("channels").Int())
		break
	}

	return md, nil
}
