package speech

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	opus "gopkg.in/hraban/opus.v2"
)

// opusStreamRate is the fixed decode rate of the opus stream decoder.
const opusStreamRate = 48000

// ErrUnsupportedAudio is returned when a payload cannot be decoded.
var ErrUnsupportedAudio = errors.New("speech: unsupported audio payload")

// decoded is PCM16 ready for the sink.
type decoded struct {
	samples    []int16
	sampleRate int
	channels   int
}

// decodeAudio sniffs the payload format and decodes it to PCM16.
// WAV and Ogg/Opus containers are recognized by magic bytes; anything
// else is treated as raw PCM16 at the fallback rate.
func decodeAudio(data []byte, fallbackRate int) (decoded, error) {
	switch {
	case len(data) >= 4 && bytes.Equal(data[:4], []byte("RIFF")):
		return decodeWAV(data)
	case len(data) >= 4 && bytes.Equal(data[:4], []byte("OggS")):
		return decodeOpus(data)
	case len(data) >= 2:
		return decoded{
			samples:    pcm16Samples(data),
			sampleRate: fallbackRate,
			channels:   1,
		}, nil
	default:
		return decoded{}, ErrUnsupportedAudio
	}
}

// decodeWAV parses a RIFF/WAVE container holding PCM16.
func decodeWAV(data []byte) (decoded, error) {
	if len(data) < 12 || !bytes.Equal(data[8:12], []byte("WAVE")) {
		return decoded{}, fmt.Errorf("%w: malformed RIFF header", ErrUnsupportedAudio)
	}

	var (
		out      decoded
		haveFmt  bool
		haveData bool
	)

	// Walk the chunk list. Chunks are 2-byte aligned.
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		if body+size > len(data) {
			size = len(data) - body
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return decoded{}, fmt.Errorf("%w: short fmt chunk", ErrUnsupportedAudio)
			}
			format := binary.LittleEndian.Uint16(data[body : body+2])
			out.channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			out.sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bits := binary.LittleEndian.Uint16(data[body+14 : body+16])
			if format != 1 || bits != 16 {
				return decoded{}, fmt.Errorf("%w: only PCM16 WAV is supported", ErrUnsupportedAudio)
			}
			haveFmt = true
		case "data":
			out.samples = pcm16Samples(data[body : body+size])
			haveData = true
		}

		pos = body + size
		if size%2 == 1 {
			pos++
		}
	}

	if !haveFmt || !haveData {
		return decoded{}, fmt.Errorf("%w: missing fmt or data chunk", ErrUnsupportedAudio)
	}
	if out.channels <= 0 || out.sampleRate <= 0 {
		return decoded{}, fmt.Errorf("%w: bad fmt chunk", ErrUnsupportedAudio)
	}
	return out, nil
}

// decodeOpus decodes an Ogg/Opus stream. The decoder always produces
// 48kHz output; voice streams are mono.
func decodeOpus(data []byte) (decoded, error) {
	stream, err := opus.NewStream(bytes.NewReader(data))
	if err != nil {
		return decoded{}, fmt.Errorf("open opus stream: %w", err)
	}
	defer stream.Close()

	var samples []int16
	buf := make([]int16, 16384)
	for {
		n, err := stream.Read(buf)
		if n > 0 {
			samples = append(samples, buf[:n]...)
		}
		if err != nil {
			break
		}
		if n == 0 {
			break
		}
	}

	if len(samples) == 0 {
		return decoded{}, fmt.Errorf("%w: empty opus stream", ErrUnsupportedAudio)
	}
	return decoded{samples: samples, sampleRate: opusStreamRate, channels: 1}, nil
}

func pcm16Samples(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(data[i*2]) | int16(data[i*2+1])<<8
	}
	return samples
}
