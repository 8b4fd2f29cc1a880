package audio

import (
	"bytes"
	"fmt"
	"io"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const encodeBitDepth = 16

// Decode parses a WAV blob into mono PCM samples and the native sample rate.
// Multi-channel input is downmixed.
func Decode(data []byte) ([]int, int, error) {
	if len(data) == 0 {
		return nil, 0, fmt.Errorf("empty audio data")
	}

	dec := wav.NewDecoder(bytes.NewReader(data))
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("decoding wav: %w", err)
	}
	if buf == nil || buf.Format == nil || buf.Format.SampleRate == 0 {
		return nil, 0, fmt.Errorf("decoding wav: missing format header")
	}

	samples := DownmixMono(buf.Data, buf.Format.NumChannels)
	return samples, buf.Format.SampleRate, nil
}

// Encode renders mono PCM samples into a self-contained 16-bit WAV blob.
func Encode(samples []int, sampleRate int) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}

	var ws bufferWriteSeeker
	enc := wav.NewEncoder(&ws, sampleRate, encodeBitDepth, 1, 1)

	buf := &gaudio.IntBuffer{
		Format:         &gaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           samples,
		SourceBitDepth: encodeBitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("encoding wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("finalizing wav: %w", err)
	}

	return ws.Bytes(), nil
}

// bufferWriteSeeker is an in-memory io.WriteSeeker. The wav encoder seeks
// back to patch chunk sizes on Close, which bytes.Buffer cannot do.
type bufferWriteSeeker struct {
	buf []byte
	pos int
}

func (b *bufferWriteSeeker) Write(p []byte) (int, error) {
	if need := b.pos + len(p); need > len(b.buf) {
		if need > cap(b.buf) {
			grown := make([]byte, need, need*2)
			copy(grown, b.buf)
			b.buf = grown
		} else {
			b.buf = b.buf[:need]
		}
	}
	copy(b.buf[b.pos:], p)
	b.pos += len(p)
	return len(p), nil
}

func (b *bufferWriteSeeker) Seek(offset int64, whence int) (int64, error) {
	var next int
	switch whence {
	case io.SeekStart:
		next = int(offset)
	case io.SeekCurrent:
		next = b.pos + int(offset)
	case io.SeekEnd:
		next = len(b.buf) + int(offset)
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	if next < 0 {
		return 0, fmt.Errorf("negative seek position %d", next)
	}
	b.pos = next
	return int64(next), nil
}

func (b *bufferWriteSeeker) Bytes() []byte {
	return b.buf
}
