package audio

import (
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/youming-ai/umuo-transcriber/internal/observability"
)

// Sentinel errors for segmentation failures. Callers match with errors.Is.
var (
	ErrDecodeFailed  = errors.New("audio decode failed")
	ErrResourceLimit = errors.New("audio resource limit exceeded")
	ErrInvalidWindow = errors.New("invalid time window")
)

// Chunk is a bounded time-windowed slice of audio content, re-encoded as a
// self-contained WAV blob. It is owned by the batch run that created it and
// discarded after transcription.
type Chunk struct {
	Data      []byte
	StartTime float64 // seconds, relative to the source audio
	EndTime   float64
	Duration  float64
	Index     int
}

// Segmenter splits decoded audio into overlapping transcription chunks and
// merges chunk blobs back into one buffer.
type Segmenter struct {
	maxInputBytes int64
	maxChunks     int
	logger        zerolog.Logger
}

// NewSegmenter creates a segmenter. maxInputBytes caps the decodable blob
// size; maxChunks caps chunk count per call as a safety valve against
// degenerate inputs.
func NewSegmenter(maxInputBytes int64, maxChunks int) *Segmenter {
	return &Segmenter{
		maxInputBytes: maxInputBytes,
		maxChunks:     maxChunks,
		logger:        observability.WithComponent("segmenter"),
	}
}

// Slice walks [startTime, effectiveEnd) in steps of chunkSeconds, each chunk
// ending at min(cursor+chunkSeconds, effectiveEnd), with the next cursor at
// chunkEnd-overlapSeconds so provider context is preserved at cut points.
// Each chunk is independently re-encoded as 16-bit mono WAV at the native rate.
func (s *Segmenter) Slice(name string, data []byte, startTime, endTime, chunkSeconds, overlapSeconds float64) ([]Chunk, error) {
	if startTime < 0 || startTime >= endTime {
		return nil, fmt.Errorf("%w: start=%v end=%v", ErrInvalidWindow, startTime, endTime)
	}
	if chunkSeconds <= 0 || overlapSeconds < 0 || overlapSeconds >= chunkSeconds {
		return nil, fmt.Errorf("%w: chunk=%vs overlap=%vs", ErrInvalidWindow, chunkSeconds, overlapSeconds)
	}
	if int64(len(data)) > s.maxInputBytes {
		return nil, fmt.Errorf("%w: %s is %d bytes (limit %d)", ErrResourceLimit, name, len(data), s.maxInputBytes)
	}

	samples, rate, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecodeFailed, name, err)
	}
	observability.RecordAudioBytes(int64(len(data)))

	totalDuration := float64(len(samples)) / float64(rate)
	effectiveEnd := math.Min(endTime, totalDuration)
	if startTime >= effectiveEnd {
		return nil, fmt.Errorf("%w: start %vs is past audio end %vs", ErrInvalidWindow, startTime, effectiveEnd)
	}

	var chunks []Chunk
	cursor := startTime
	for {
		chunkEnd := math.Min(cursor+chunkSeconds, effectiveEnd)

		startIdx := int(cursor * float64(rate))
		endIdx := int(chunkEnd * float64(rate))
		if endIdx > len(samples) {
			endIdx = len(samples)
		}
		if startIdx >= endIdx {
			break
		}

		encoded, err := Encode(samples[startIdx:endIdx], rate)
		if err != nil {
			return nil, fmt.Errorf("encoding chunk %d of %s: %w", len(chunks), name, err)
		}

		chunks = append(chunks, Chunk{
			Data:      encoded,
			StartTime: cursor,
			EndTime:   chunkEnd,
			Duration:  chunkEnd - cursor,
			Index:     len(chunks),
		})

		if chunkEnd >= effectiveEnd {
			break
		}
		if len(chunks) >= s.maxChunks {
			// Safety valve against unbounded memory growth, not a hard failure.
			s.logger.Warn().
				Str("file", name).
				Int("max_chunks", s.maxChunks).
				Float64("covered_seconds", chunkEnd).
				Float64("total_seconds", effectiveEnd).
				Msg("chunk cap reached before window was fully consumed")
			break
		}
		cursor = chunkEnd - overlapSeconds
	}

	return chunks, nil
}

// Merge re-decodes each chunk, resamples any chunk whose native rate differs
// from the first chunk's rate, and concatenates sample-accurate into one
// 16-bit mono WAV buffer.
func (s *Segmenter) Merge(chunks []Chunk) ([]byte, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no chunks to merge")
	}

	var merged []int
	targetRate := 0
	for _, c := range chunks {
		samples, rate, err := Decode(c.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: chunk %d: %v", ErrDecodeFailed, c.Index, err)
		}
		if targetRate == 0 {
			targetRate = rate
		} else if rate != targetRate {
			samples = Resample(samples, rate, targetRate)
		}
		merged = append(merged, samples...)
	}

	return Encode(merged, targetRate)
}

// Duration reports the duration in seconds of a WAV blob.
func (s *Segmenter) Duration(data []byte) (float64, error) {
	samples, rate, err := Decode(data)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	return float64(len(samples)) / float64(rate), nil
}

// Truncate re-encodes audio to canonical 16-bit mono WAV, keeping at most
// maxSeconds of content. Truncation that would produce zero-length audio is
// rejected rather than silently dropped.
func (s *Segmenter) Truncate(name string, data []byte, maxSeconds float64) ([]byte, float64, error) {
	samples, rate, err := Decode(data)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %s: %v", ErrDecodeFailed, name, err)
	}

	keep := len(samples)
	if maxSeconds > 0 {
		limit := int(maxSeconds * float64(rate))
		if limit < keep {
			keep = limit
		}
	}
	if keep == 0 {
		return nil, 0, fmt.Errorf("%w: %s: truncation would produce zero-length audio", ErrInvalidWindow, name)
	}

	encoded, err := Encode(samples[:keep], rate)
	if err != nil {
		return nil, 0, fmt.Errorf("re-encoding %s: %w", name, err)
	}
	return encoded, float64(keep) / float64(rate), nil
}
