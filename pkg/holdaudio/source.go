package holdaudio

import (
	"encoding/binary"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/zaf/g711"
)

// FrameSize is one telephony media frame: 20ms of 8kHz µ-law.
const FrameSize = 160

// Buffer is a loaded hold-audio clip in the telephony codec. NextFrame
// extracts successive fixed-size frames, wrapping cyclically.
type Buffer struct {
	data []byte
	off  int
}

func NewBuffer(data []byte) *Buffer {
	return &Buffer{data: data}
}

func (b *Buffer) Len() int { return len(b.data) }

// NextFrame returns the next FrameSize bytes, wrapping around the clip.
func (b *Buffer) NextFrame() []byte {
	frame := make([]byte, FrameSize)
	for i := 0; i < FrameSize; i++ {
		frame[i] = b.data[b.off]
		b.off++
		if b.off >= len(b.data) {
			b.off = 0
		}
	}
	return frame
}

// Silence returns a buffer of µ-law silence frames. 0xFF is the µ-law
// encoding of zero amplitude.
func Silence(frames int) *Buffer {
	if frames < 1 {
		frames = 1
	}
	data := make([]byte, frames*FrameSize)
	for i := range data {
		data[i] = 0xFF
	}
	return &Buffer{data: data}
}

// Source yields a pre-decoded hold-audio buffer or signals unavailability;
// callers fall back to silence.
type Source interface {
	Load() (*Buffer, error)
}

// DirSource picks a random .wav file from a directory on every Load.
type DirSource struct {
	dir string
}

func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

func (s *DirSource) Load() (*Buffer, error) {
	if s.dir == "" {
		return nil, fmt.Errorf("no hold-music directory configured")
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read hold-music dir: %w", err)
	}

	var wavs []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ".wav") {
			wavs = append(wavs, filepath.Join(s.dir, e.Name()))
		}
	}
	if len(wavs) == 0 {
		return nil, fmt.Errorf("no .wav files in %s", s.dir)
	}

	path := wavs[rand.Intn(len(wavs))]
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	data, err := DecodeWAVToMuLaw(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return NewBuffer(data), nil
}

const (
	wavFormatPCM   = 1
	wavFormatMuLaw = 7
)

// DecodeWAVToMuLaw converts a mono WAV file to 8kHz µ-law. µ-law WAVs pass
// through; 16-bit PCM is resampled to 8kHz and companded.
func DecodeWAVToMuLaw(raw []byte) ([]byte, error) {
	if len(raw) < 44 || string(raw[0:4]) != "RIFF" || string(raw[8:12]) != "WAVE" {
		return nil, fmt.Errorf("not a RIFF/WAVE file")
	}

	var (
		format     uint16
		channels   uint16
		sampleRate uint32
		bits       uint16
		data       []byte
	)

	// Walk the chunk list; fmt and data can appear in any order and other
	// chunks (LIST, fact) may sit between them.
	off := 12
	for off+8 <= len(raw) {
		id := string(raw[off : off+4])
		size := int(binary.LittleEndian.Uint32(raw[off+4 : off+8]))
		body := off + 8
		if body+size > len(raw) {
			size = len(raw) - body
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("short fmt chunk")
			}
			format = binary.LittleEndian.Uint16(raw[body : body+2])
			channels = binary.LittleEndian.Uint16(raw[body+2 : body+4])
			sampleRate = binary.LittleEndian.Uint32(raw[body+4 : body+8])
			bits = binary.LittleEndian.Uint16(raw[body+14 : body+16])
		case "data":
			data = raw[body : body+size]
		}

		// Chunks are word-aligned.
		off = body + size
		if size%2 == 1 {
			off++
		}
	}

	if data == nil {
		return nil, fmt.Errorf("no data chunk")
	}
	if channels != 1 {
		return nil, fmt.Errorf("expected mono audio, got %d channels", channels)
	}

	switch format {
	case wavFormatMuLaw:
		if sampleRate != 8000 {
			return nil, fmt.Errorf("µ-law audio must be 8kHz, got %dHz", sampleRate)
		}
		return data, nil
	case wavFormatPCM:
		if bits != 16 {
			return nil, fmt.Errorf("expected 16-bit PCM, got %d-bit", bits)
		}
		pcm := resamplePCM16(data, int(sampleRate), 8000)
		return g711.EncodeUlaw(pcm), nil
	default:
		return nil, fmt.Errorf("unsupported WAV format %d", format)
	}
}

// resamplePCM16 linearly resamples 16-bit little-endian PCM.
func resamplePCM16(data []byte, from, to int) []byte {
	if from == to || from <= 0 || to <= 0 {
		return data
	}

	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2 : i*2+2]))
	}

	outLen := int(int64(len(samples)) * int64(to) / int64(from))
	out := make([]byte, outLen*2)
	for i := 0; i < outLen; i++ {
		pos := float64(i) * float64(from) / float64(to)
		idx := int(pos)
		frac := pos - float64(idx)

		s := float64(samples[idx])
		if idx+1 < len(samples) {
			s = s*(1-frac) + float64(samples[idx+1])*frac
		}
		binary.LittleEndian.PutUint16(out[i*2:i*2+2], uint16(int16(s)))
	}
	return out
}
