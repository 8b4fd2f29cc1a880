package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is a mutex-guarded in-memory Store used by the daemon and by
// tests. Writes are serialized by the lock.
type MemoryStore struct {
	mu          sync.RWMutex
	files       map[string]*FileRecord
	transcripts map[string]*TranscriptRecord
	segments    map[string][]SegmentRecord // keyed by transcript ID
	chunks      map[string]map[int][]byte  // fileID -> index -> bytes
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		files:       make(map[string]*FileRecord),
		transcripts: make(map[string]*TranscriptRecord),
		segments:    make(map[string][]SegmentRecord),
		chunks:      make(map[string]map[int][]byte),
	}
}

// AddFile stores a file record, assigning an ID when absent.
func (s *MemoryStore) AddFile(ctx context.Context, rec *FileRecord) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.ModTime.IsZero() {
		rec.ModTime = time.Now().UTC()
	}
	cp := *rec
	s.files[rec.ID] = &cp
	return rec.ID, nil
}

// GetFile returns a copy of the file record or ErrNotFound.
func (s *MemoryStore) GetFile(ctx context.Context, fileID string) (*FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.files[fileID]
	if !ok {
		return nil, fmt.Errorf("file %s: %w", fileID, ErrNotFound)
	}
	cp := *rec
	return &cp, nil
}

// AddTranscript stores a transcript header and returns its ID.
func (s *MemoryStore) AddTranscript(ctx context.Context, rec *TranscriptRecord) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	cp := *rec
	s.transcripts[rec.ID] = &cp
	return rec.ID, nil
}

// UpdateTranscriptStatus changes a transcript's status.
func (s *MemoryStore) UpdateTranscriptStatus(ctx context.Context, transcriptID, status string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.transcripts[transcriptID]
	if !ok {
		return fmt.Errorf("transcript %s: %w", transcriptID, ErrNotFound)
	}
	rec.Status = status
	return nil
}

// AddSegments appends segments to a transcript and returns assigned IDs.
func (s *MemoryStore) AddSegments(ctx context.Context, transcriptID string, segments []SegmentRecord) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.transcripts[transcriptID]; !ok {
		return nil, fmt.Errorf("transcript %s: %w", transcriptID, ErrNotFound)
	}

	ids := make([]string, len(segments))
	for i, seg := range segments {
		if seg.ID == "" {
			seg.ID = uuid.New().String()
		}
		seg.TranscriptID = transcriptID
		ids[i] = seg.ID
		s.segments[transcriptID] = append(s.segments[transcriptID], seg)
	}
	return ids, nil
}

// GetSegmentsByTranscript returns segments ordered by index.
func (s *MemoryStore) GetSegmentsByTranscript(ctx context.Context, transcriptID string) ([]SegmentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	segs := s.segments[transcriptID]
	out := make([]SegmentRecord, len(segs))
	copy(out, segs)
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

// PutChunk stores one blob chunk of a large source file.
func (s *MemoryStore) PutChunk(ctx context.Context, fileID string, index int, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.chunks[fileID]; !ok {
		s.chunks[fileID] = make(map[int][]byte)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	s.chunks[fileID][index] = cp
	return nil
}

// GetChunks returns a file's blob chunks ordered by index.
func (s *MemoryStore) GetChunks(ctx context.Context, fileID string) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	byIndex, ok := s.chunks[fileID]
	if !ok {
		return nil, fmt.Errorf("chunks for file %s: %w", fileID, ErrNotFound)
	}

	indexes := make([]int, 0, len(byIndex))
	for idx := range byIndex {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	out := make([][]byte, 0, len(indexes))
	for _, idx := range indexes {
		out = append(out, byIndex[idx])
	}
	return out, nil
}
