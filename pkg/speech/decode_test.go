package speech

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

// buildWAV assembles a minimal PCM16 RIFF container.
func buildWAV(samples []int16, sampleRate, channels int) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(data)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*channels*2))
	binary.Write(&buf, binary.LittleEndian, uint16(channels*2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(data)))
	buf.Write(data)

	return buf.Bytes()
}

func TestDecodeWAV(t *testing.T) {
	samples := []int16{0, 1000, -1000, 32767, -32768}
	wav := buildWAV(samples, 24000, 1)

	dec, err := decodeAudio(wav, 16000)
	if err != nil {
		t.Fatal(err)
	}
	if dec.sampleRate != 24000 {
		t.Errorf("sample rate = %d, want 24000", dec.sampleRate)
	}
	if dec.channels != 1 {
		t.Errorf("channels = %d, want 1", dec.channels)
	}
	if len(dec.samples) != len(samples) {
		t.Fatalf("samples = %d, want %d", len(dec.samples), len(samples))
	}
	for i := range samples {
		if dec.samples[i] != samples[i] {
			t.Errorf("sample %d = %d, want %d", i, dec.samples[i], samples[i])
		}
	}
}

func TestDecodeWAV_RejectsNonPCM(t *testing.T) {
	wav := buildWAV([]int16{1, 2, 3}, 24000, 1)
	// Flip the audio format field to IEEE float.
	wav[20] = 3

	if _, err := decodeAudio(wav, 16000); !errors.Is(err, ErrUnsupportedAudio) {
		t.Errorf("err = %v, want ErrUnsupportedAudio", err)
	}
}

func TestDecodeRawPCMFallback(t *testing.T) {
	raw := []byte{0x10, 0x00, 0xF0, 0xFF} // 16, -16

	dec, err := decodeAudio(raw, 16000)
	if err != nil {
		t.Fatal(err)
	}
	if dec.sampleRate != 16000 {
		t.Errorf("sample rate = %d, want fallback 16000", dec.sampleRate)
	}
	if len(dec.samples) != 2 || dec.samples[0] != 16 || dec.samples[1] != -16 {
		t.Errorf("samples = %v, want [16 -16]", dec.samples)
	}
}

func TestDecodeTooShort(t *testing.T) {
	if _, err := decodeAudio([]byte{0x01}, 16000); !errors.Is(err, ErrUnsupportedAudio) {
		t.Errorf("err = %v, want ErrUnsupportedAudio", err)
	}
}
