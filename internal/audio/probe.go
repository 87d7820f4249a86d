package audio

import (
	"encoding/json"
	"os"
	"strconv"
	"time"

	"github.com/faiface/beep/wav"
	"github.com/sirupsen/logrus"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// ProbeTimeout bounds the ffprobe call.
const ProbeTimeout = 10 * time.Second

type probeOutput struct {
	Streams []struct {
		SampleRate string `json:"sample_rate"`
		Channels   int    `json:"channels"`
	} `json:"streams"`
}

// Prober detects the format of the source sample. It never fails: ffprobe is
// tried first, then the WAV header, then DefaultFormat.
type Prober struct {
	// Probe runs ffprobe and returns its JSON output. Replaceable in tests.
	Probe func(path string) (string, error)
}

func NewProber() *Prober {
	return &Prober{Probe: func(path string) (string, error) {
		return ffmpeg.ProbeWithTimeout(path, ProbeTimeout, ffmpeg.KwArgs{"select_streams": "a:0"})
	}}
}

func (p *Prober) Format(path string) Format {
	log := logrus.WithField("path", path)

	if p.Probe != nil {
		out, err := p.Probe(path)
		if err == nil {
			if f, ok := parseProbe(out); ok {
				return f
			}
			log.Debug("ffprobe output has no usable audio stream")
		} else {
			log.WithError(err).Debug("ffprobe failed")
		}
	}

	if f, err := wavFormat(path); err == nil {
		return f
	} else {
		log.WithError(err).Debug("wav header unreadable")
	}

	log.Warnf("could not detect audio format, using %d Hz / %d channels", DefaultFormat.SampleRate, DefaultFormat.Channels)
	return DefaultFormat
}

func parseProbe(out string) (Format, bool) {
	var po probeOutput
	if err := json.Unmarshal([]byte(out), &po); err != nil || len(po.Streams) == 0 {
		return Format{}, false
	}
	rate, err := strconv.Atoi(po.Streams[0].SampleRate)
	if err != nil || rate <= 0 || po.Streams[0].Channels <= 0 {
		return Format{}, false
	}
	return Format{SampleRate: rate, Channels: po.Streams[0].Channels}, true
}

func wavFormat(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return Format{}, err
	}
	defer f.Close()

	s, format, err := wav.Decode(f)
	if err != nil {
		return Format{}, err
	}
	defer s.Close()

	return Format{SampleRate: int(format.SampleRate), Channels: format.NumChannels}, nil
}
