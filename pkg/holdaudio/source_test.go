package holdaudio

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

func wavFile(format, channels uint16, rate uint32, bits uint16, data []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(data)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, format)
	binary.Write(&buf, binary.LittleEndian, channels)
	binary.Write(&buf, binary.LittleEndian, rate)
	binary.Write(&buf, binary.LittleEndian, rate*uint32(channels)*uint32(bits)/8)
	binary.Write(&buf, binary.LittleEndian, uint16(uint32(channels)*uint32(bits)/8))
	binary.Write(&buf, binary.LittleEndian, bits)

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(data)))
	buf.Write(data)
	return buf.Bytes()
}

func TestDecodeMuLawPassthrough(t *testing.T) {
	payload := []byte{0x7F, 0xFF, 0x00, 0x80}
	out, err := DecodeWAVToMuLaw(wavFile(wavFormatMuLaw, 1, 8000, 8, payload))
	if err != nil {
		t.Fatalf("DecodeWAVToMuLaw: %v", err)
	}
	if !bytes.Equal(out, payload) {
		t.Errorf("out = %v, want %v", out, payload)
	}
}

func TestDecodePCM16Resamples(t *testing.T) {
	pcm := make([]byte, 8*2)
	for i := 0; i < 8; i++ {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(i*1000)))
	}
	out, err := DecodeWAVToMuLaw(wavFile(wavFormatPCM, 1, 16000, 16, pcm))
	if err != nil {
		t.Fatalf("DecodeWAVToMuLaw: %v", err)
	}
	if len(out) != 4 {
		t.Errorf("len(out) = %d, want 4 after 16k->8k resample", len(out))
	}
}

func TestDecodeRejectsBadInput(t *testing.T) {
	if _, err := DecodeWAVToMuLaw([]byte("not a wav")); err == nil {
		t.Error("expected error for non-RIFF input")
	}
	if _, err := DecodeWAVToMuLaw(wavFile(wavFormatMuLaw, 2, 8000, 8, []byte{0xFF})); err == nil {
		t.Error("expected error for stereo input")
	}
	if _, err := DecodeWAVToMuLaw(wavFile(wavFormatMuLaw, 1, 44100, 8, []byte{0xFF})); err == nil {
		t.Error("expected error for non-8k mu-law")
	}
}

func TestBufferNextFrameWraps(t *testing.T) {
	data := make([]byte, 200)
	for i := range data {
		data[i] = byte(i)
	}
	b := NewBuffer(data)

	first := b.NextFrame()
	if len(first) != FrameSize || first[0] != 0 || first[159] != 159 {
		t.Fatalf("first frame = len %d, [0]=%d, [159]=%d", len(first), first[0], first[159])
	}

	second := b.NextFrame()
	if second[0] != 160 {
		t.Errorf("second frame starts at %d, want 160", second[0])
	}
	// 40 bytes remain before wrap, so byte 40 is the clip start again.
	if second[40] != 0 {
		t.Errorf("second frame did not wrap, [40]=%d", second[40])
	}
}

func TestSilence(t *testing.T) {
	b := Silence(2)
	if b.Len() != 2*FrameSize {
		t.Fatalf("Len = %d", b.Len())
	}
	frame := b.NextFrame()
	for i, v := range frame {
		if v != 0xFF {
			t.Fatalf("frame[%d] = %#x, want 0xFF", i, v)
		}
	}
	if got := Silence(0).Len(); got != FrameSize {
		t.Errorf("Silence(0).Len() = %d", got)
	}
}

func TestDirSourceLoad(t *testing.T) {
	dir := t.TempDir()
	payload := bytes.Repeat([]byte{0xFE}, 320)
	path := filepath.Join(dir, "hold.wav")
	if err := os.WriteFile(path, wavFile(wavFormatMuLaw, 1, 8000, 8, payload), 0o644); err != nil {
		t.Fatal(err)
	}

	buf, err := NewDirSource(dir).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if buf.Len() != len(payload) {
		t.Errorf("Len = %d, want %d", buf.Len(), len(payload))
	}
}

func TestDirSourceEmptyDir(t *testing.T) {
	if _, err := NewDirSource(t.TempDir()).Load(); err == nil {
		t.Error("expected error for directory without wav files")
	}
}
