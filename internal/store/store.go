package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("store: not found")

// Transcript statuses persisted by the pipeline.
const (
	TranscriptProcessing = "processing"
	TranscriptCompleted  = "completed"
	TranscriptFailed     = "failed"
)

// FileRecord describes one uploaded audio file. Data is empty when the blob
// was written through PutChunk (Chunked true); callers reassemble with
// GetChunks.
type FileRecord struct {
	ID       string
	Name     string
	Format   string
	Size     int64
	Duration float64
	ModTime  time.Time
	Chunked  bool
	Data     []byte
}

// TranscriptRecord is one transcription run's persisted output header.
type TranscriptRecord struct {
	ID        string
	FileID    string
	Status    string
	Language  string
	Text      string
	CreatedAt time.Time
}

// SegmentRecord is a time-ranged span of transcript text.
type SegmentRecord struct {
	ID           string
	TranscriptID string
	Index        int
	Start        float64
	End          float64
	Text         string
	Confidence   float64
}

// Store is the persistence collaborator contract. Implementations serialize
// their own writes; the pipeline opens no multi-operation transactions.
type Store interface {
	AddFile(ctx context.Context, rec *FileRecord) (string, error)
	GetFile(ctx context.Context, fileID string) (*FileRecord, error)

	AddTranscript(ctx context.Context, rec *TranscriptRecord) (string, error)
	UpdateTranscriptStatus(ctx context.Context, transcriptID, status string) error

	AddSegments(ctx context.Context, transcriptID string, segments []SegmentRecord) ([]string, error)
	GetSegmentsByTranscript(ctx context.Context, transcriptID string) ([]SegmentRecord, error)

	// Blob chunking of large source files, distinct from audio segmentation.
	PutChunk(ctx context.Context, fileID string, index int, data []byte) error
	GetChunks(ctx context.Context, fileID string) ([][]byte, error)
}
