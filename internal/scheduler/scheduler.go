package scheduler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/youming-ai/umuo-transcriber/internal/audio"
	"github.com/youming-ai/umuo-transcriber/internal/batch"
	"github.com/youming-ai/umuo-transcriber/internal/observability"
	"github.com/youming-ai/umuo-transcriber/internal/store"
	"github.com/youming-ai/umuo-transcriber/internal/transcriber"
)

// ErrSchedulerClosed is returned for operations after Close.
var ErrSchedulerClosed = errors.New("scheduler: closed")

// Transcriber is the provider-facing collaborator. Satisfied by
// transcriber.Client.
type Transcriber interface {
	Transcribe(ctx context.Context, file transcriber.File, opts transcriber.Options) (*transcriber.Result, error)
}

// Config bounds the scheduler's concurrency and chunking behavior.
type Config struct {
	MaxConcurrency        int           // Worker slots shared across all tasks
	ChunkSeconds          float64       // Transcription window length
	OverlapSeconds        float64       // Overlap between adjacent windows
	ChunkThresholdSeconds float64       // Files longer than this are chunked
	AvgTaskDuration       time.Duration // Empirical constant for wait estimates
	EventBufferSize       int           // Per-subscriber channel depth
	Batch                 *batch.Config // Chunk transcription batching; nil selects the size-adaptive preset per file
}

// DefaultConfig returns production defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxConcurrency:        2,
		ChunkSeconds:          45,
		OverlapSeconds:        5,
		ChunkThresholdSeconds: 60,
		AvgTaskDuration:       30 * time.Second,
		EventBufferSize:       64,
		Batch:                 batch.DefaultConfig(),
	}
}

// TaskOptions tune one scheduled transcription run.
type TaskOptions struct {
	Language    string  `json:"language,omitempty"`
	Model       string  `json:"model,omitempty"`
	Prompt      string  `json:"prompt,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	Priority    int     `json:"priority,omitempty"`
}

// taskControl carries the per-run cancellation context and pause gate.
// The gate channel is closed while the task may make progress; pausing
// swaps in an open channel that workers block on.
type taskControl struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	gate chan struct{}
}

func newTaskControl() *taskControl {
	ctx, cancel := context.WithCancel(context.Background())
	gate := make(chan struct{})
	close(gate)
	return &taskControl{ctx: ctx, cancel: cancel, gate: gate}
}

func (c *taskControl) pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.gate:
		c.gate = make(chan struct{})
	default:
	}
}

func (c *taskControl) resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.gate:
	default:
		close(c.gate)
	}
}

// wait blocks while the task is paused, returning early on cancellation.
func (c *taskControl) wait(ctx context.Context) error {
	c.mu.Lock()
	gate := c.gate
	c.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-gate:
		return nil
	}
}

// Scheduler owns the task registry, the FIFO-plus-priority queue and the
// global worker slots. It is the single writer of task state.
type Scheduler struct {
	cfg       *Config
	store     store.Store
	client    Transcriber
	segmenter *audio.Segmenter
	feed      *Feed
	logger    zerolog.Logger

	mu           sync.Mutex
	tasks        map[string]*Task
	opts         map[string]TaskOptions
	controls     map[string]*taskControl
	activeByFile map[string]string
	queue        []string
	running      int
	closed       bool
	wg           sync.WaitGroup
}

// New builds a scheduler. Callers must Close it to drain running tasks.
func New(st store.Store, client Transcriber, segmenter *audio.Segmenter, cfg *Config) *Scheduler {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Scheduler{
		cfg:          cfg,
		store:        st,
		client:       client,
		segmenter:    segmenter,
		feed:         NewFeed(cfg.EventBufferSize, 500),
		logger:       observability.WithComponent("scheduler"),
		tasks:        make(map[string]*Task),
		opts:         make(map[string]TaskOptions),
		controls:     make(map[string]*taskControl),
		activeByFile: make(map[string]string),
	}
}

// AddTask enqueues a transcription run for fileID. It rejects a second
// active task for the same file and starts the run immediately when a
// worker slot is free.
func (s *Scheduler) AddTask(fileID string, meta Metadata, opts TaskOptions) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSchedulerClosed
	}
	if activeID, ok := s.activeByFile[fileID]; ok {
		return nil, fmt.Errorf("%w: file %s (task %s)", ErrDuplicateTask, fileID, activeID)
	}

	task := &Task{
		ID:        uuid.New().String(),
		FileID:    fileID,
		Status:    StatusQueued,
		Priority:  opts.Priority,
		Attempts:  1,
		Metadata:  meta,
		CreatedAt: time.Now().UTC(),
	}
	s.tasks[task.ID] = task
	s.opts[task.ID] = opts
	s.activeByFile[fileID] = task.ID
	s.enqueueLocked(task.ID)

	observability.RecordTaskQueued()
	s.publishLocked(task, "task queued")
	s.logger.Info().Str("task_id", task.ID).Str("file_id", fileID).Msg("task queued")

	s.dispatchLocked()
	return snapshot(task), nil
}

// CancelTask moves an active task to cancelled. Valid from queued,
// processing and paused; in-flight provider calls are not aborted but
// their results are discarded.
func (s *Scheduler) CancelTask(taskID string) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return nil, ErrTaskNotFound
	}
	if !canTransition(task.Status, StatusCancelled) {
		return nil, &InvalidTransitionError{TaskID: taskID, From: task.Status, To: StatusCancelled}
	}

	wasQueued := task.Status == StatusQueued
	task.Status = StatusCancelled
	now := time.Now().UTC()
	task.CompletedAt = &now

	if wasQueued {
		s.removeFromQueueLocked(taskID)
		s.releaseLocked(task)
		observability.RecordTaskDequeued(string(StatusCancelled))
	} else if ctrl, ok := s.controls[taskID]; ok {
		// resume first so paused workers observe the cancellation
		ctrl.resume()
		ctrl.cancel()
	}

	s.publishLocked(task, "task cancelled")
	s.logger.Info().Str("task_id", taskID).Msg("task cancelled")
	return snapshot(task), nil
}

// PauseTask stops scheduling new chunk work for a processing task without
// losing completed chunk results.
func (s *Scheduler) PauseTask(taskID string) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return nil, ErrTaskNotFound
	}
	if task.Status != StatusProcessing {
		return nil, &InvalidTransitionError{TaskID: taskID, From: task.Status, To: StatusPaused}
	}

	task.Status = StatusPaused
	if ctrl, ok := s.controls[taskID]; ok {
		ctrl.pause()
	}
	s.publishLocked(task, "task paused")
	return snapshot(task), nil
}

// ResumeTask returns a paused task to processing.
func (s *Scheduler) ResumeTask(taskID string) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return nil, ErrTaskNotFound
	}
	if task.Status != StatusPaused {
		return nil, &InvalidTransitionError{TaskID: taskID, From: task.Status, To: StatusProcessing}
	}

	task.Status = StatusProcessing
	if ctrl, ok := s.controls[taskID]; ok {
		ctrl.resume()
	}
	s.publishLocked(task, "task resumed")
	return snapshot(task), nil
}

// RetryTask re-queues a failed task with its original metadata and options.
// Progress resets to zero; the attempt counter is diagnostic only.
func (s *Scheduler) RetryTask(taskID string) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSchedulerClosed
	}
	task, ok := s.tasks[taskID]
	if !ok {
		return nil, ErrTaskNotFound
	}
	if !canTransition(task.Status, StatusQueued) {
		return nil, &InvalidTransitionError{TaskID: taskID, From: task.Status, To: StatusQueued}
	}
	if activeID, ok := s.activeByFile[task.FileID]; ok && activeID != taskID {
		return nil, fmt.Errorf("%w: file %s (task %s)", ErrDuplicateTask, task.FileID, activeID)
	}

	task.Status = StatusQueued
	task.Progress = 0
	task.Attempts++
	task.Error = ""
	task.Hint = ""
	task.Result = nil
	task.StartedAt = nil
	task.CompletedAt = nil

	s.activeByFile[task.FileID] = taskID
	s.enqueueLocked(taskID)

	observability.RecordTaskQueued()
	s.publishLocked(task, "task requeued for retry")
	s.logger.Info().Str("task_id", taskID).Int("attempt", task.Attempts).Msg("task requeued")

	s.dispatchLocked()
	return snapshot(task), nil
}

// GetTask returns a snapshot of the task, or ErrTaskNotFound.
func (s *Scheduler) GetTask(taskID string) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return snapshot(task), nil
}

// GetTaskByFile returns the file's active task if one exists, else its
// most recently created task.
func (s *Scheduler) GetTaskByFile(fileID string) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.activeByFile[fileID]; ok {
		return snapshot(s.tasks[id]), nil
	}

	var latest *Task
	for _, task := range s.tasks {
		if task.FileID != fileID {
			continue
		}
		if latest == nil || task.CreatedAt.After(latest.CreatedAt) {
			latest = task
		}
	}
	if latest == nil {
		return nil, ErrTaskNotFound
	}
	return snapshot(latest), nil
}

// ListQueue returns snapshots of queued tasks in dispatch order.
func (s *Scheduler) ListQueue() []*Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Task, 0, len(s.queue))
	for _, id := range s.queue {
		out = append(out, snapshot(s.tasks[id]))
	}
	return out
}

// ListTasks returns snapshots of every known task, oldest first.
func (s *Scheduler) ListTasks() []*Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		out = append(out, snapshot(task))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// QueuePosition returns the zero-based index of a queued task within the
// queue, or -1 when the task is not queued.
func (s *Scheduler) QueuePosition(taskID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[taskID]; !ok {
		return -1, ErrTaskNotFound
	}
	for i, id := range s.queue {
		if id == taskID {
			return i, nil
		}
	}
	return -1, nil
}

// EstimatedWait approximates how long a queued task waits before a slot
// frees. The average task duration is an empirical constant, so this is a
// documented approximation rather than a precise ETA.
func (s *Scheduler) EstimatedWait(taskID string) (time.Duration, error) {
	pos, err := s.QueuePosition(taskID)
	if err != nil {
		return 0, err
	}
	if pos <= 0 {
		return 0, nil
	}
	rounds := (pos + s.cfg.MaxConcurrency - 1) / s.cfg.MaxConcurrency
	return time.Duration(rounds) * s.cfg.AvgTaskDuration, nil
}

// Subscribe registers a live event channel. See Feed.Subscribe.
func (s *Scheduler) Subscribe() (<-chan Event, func()) {
	return s.feed.Subscribe()
}

// EventsSince returns buffered events newer than seq for pollers.
func (s *Scheduler) EventsSince(seq int64) []Event {
	return s.feed.Since(seq)
}

// Close cancels running tasks, waits for them to drain and closes the
// event feed.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.queue = nil
	for _, ctrl := range s.controls {
		ctrl.resume()
		ctrl.cancel()
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.feed.Close()
}

// enqueueLocked inserts taskID keeping higher priority first and FIFO
// order within a priority tier.
func (s *Scheduler) enqueueLocked(taskID string) {
	priority := s.tasks[taskID].Priority
	pos := len(s.queue)
	for i, id := range s.queue {
		if s.tasks[id].Priority < priority {
			pos = i
			break
		}
	}
	s.queue = append(s.queue, "")
	copy(s.queue[pos+1:], s.queue[pos:])
	s.queue[pos] = taskID
}

func (s *Scheduler) removeFromQueueLocked(taskID string) {
	for i, id := range s.queue {
		if id == taskID {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return
		}
	}
}

// dispatchLocked promotes queued tasks into free worker slots.
func (s *Scheduler) dispatchLocked() {
	for s.running < s.cfg.MaxConcurrency && len(s.queue) > 0 && !s.closed {
		taskID := s.queue[0]
		s.queue = s.queue[1:]

		task := s.tasks[taskID]
		task.Status = StatusProcessing
		now := time.Now().UTC()
		task.StartedAt = &now

		ctrl := newTaskControl()
		s.controls[taskID] = ctrl
		s.running++

		observability.RecordTaskStart()
		s.publishLocked(task, "task started")

		s.wg.Add(1)
		go s.run(taskID, ctrl)
	}
}

// releaseLocked frees the file's single active slot if this task holds it.
func (s *Scheduler) releaseLocked(task *Task) {
	if s.activeByFile[task.FileID] == task.ID {
		delete(s.activeByFile, task.FileID)
	}
}

func (s *Scheduler) publishLocked(task *Task, message string) {
	s.feed.Publish(Event{
		TaskID:   task.ID,
		FileID:   task.FileID,
		Status:   task.Status,
		Progress: task.Progress,
		Message:  message,
	})
}

// setProgress applies a monotonic progress update within one run.
func (s *Scheduler) setProgress(taskID string, percent float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[taskID]
	if !ok || task.IsTerminal() {
		return
	}
	if percent <= task.Progress {
		return
	}
	task.Progress = percent
	s.publishLocked(task, "")
}

func (s *Scheduler) run(taskID string, ctrl *taskControl) {
	defer s.wg.Done()

	started := time.Now()
	result, err := s.execute(ctrl, taskID)

	// A paused task has no edge into a terminal state, so the outcome is
	// held until the task is resumed or cancelled.
	for !s.finish(taskID, result, err, started) {
		ctrl.wait(ctrl.ctx)
	}
}

// finish applies the run's outcome, frees the worker slot and dispatches
// the next queued task. A task cancelled mid-run keeps its cancelled
// status; the late result is discarded. Returns false while the task is
// paused; the caller retries once the pause gate reopens.
func (s *Scheduler) finish(taskID string, result *TaskResult, runErr error, started time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	task := s.tasks[taskID]
	if task.Status == StatusPaused {
		return false
	}
	s.running--
	delete(s.controls, taskID)

	switch {
	case task.Status == StatusCancelled:
		// already terminal and announced
	case runErr != nil:
		now := time.Now().UTC()
		task.Status = StatusFailed
		task.CompletedAt = &now
		task.Error = runErr.Error()
		var classified *transcriber.Error
		if errors.As(runErr, &classified) {
			task.Hint = classified.Hint
		}
		s.publishLocked(task, task.Error)
		s.logger.Error().Err(runErr).Str("task_id", taskID).Msg("task failed")
	default:
		now := time.Now().UTC()
		task.Status = StatusCompleted
		task.CompletedAt = &now
		task.Progress = 100
		task.Result = result
		s.publishLocked(task, "task completed")
		s.logger.Info().Str("task_id", taskID).Dur("elapsed", time.Since(started)).Msg("task completed")
	}

	observability.RecordTaskEnd(string(task.Status), started)
	s.releaseLocked(task)
	s.dispatchLocked()
	return true
}

// execute runs the transcription pipeline for one task: load the source
// blob, slice it into chunks, transcribe the chunks through the batch
// executor and persist the merged segments.
func (s *Scheduler) execute(ctrl *taskControl, taskID string) (*TaskResult, error) {
	s.mu.Lock()
	task := s.tasks[taskID]
	fileID := task.FileID
	opts := s.opts[taskID]
	s.mu.Unlock()

	logger := observability.WithTask(taskID, fileID)
	logger.Debug().Str("language", opts.Language).Msg("task execution started")

	rec, err := s.store.GetFile(ctrl.ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("load file %s: %w", fileID, err)
	}

	data := rec.Data
	if rec.Chunked || len(data) == 0 {
		parts, err := s.store.GetChunks(ctrl.ctx, fileID)
		if err != nil {
			return nil, fmt.Errorf("load file %s blob chunks: %w", fileID, err)
		}
		data = bytes.Join(parts, nil)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("file %s has no audio data", fileID)
	}
	observability.RecordAudioBytes(int64(len(data)))

	transcriptID, err := s.store.AddTranscript(ctrl.ctx, &store.TranscriptRecord{
		FileID:   fileID,
		Status:   store.TranscriptProcessing,
		Language: opts.Language,
	})
	if err != nil {
		return nil, fmt.Errorf("create transcript: %w", err)
	}

	chunks, err := s.sliceAudio(rec, data)
	if err != nil {
		s.markTranscriptFailed(transcriptID)
		return nil, err
	}
	s.setProgress(taskID, 5)

	segments, runErr := s.transcribeChunks(ctrl, taskID, rec, chunks, opts)
	if runErr != nil {
		s.markTranscriptFailed(transcriptID)
		return nil, runErr
	}

	if s.isCancelled(taskID) {
		s.markTranscriptFailed(transcriptID)
		return nil, nil
	}
	s.setProgress(taskID, 95)

	result, err := s.persistSegments(ctrl.ctx, transcriptID, rec, segments, opts)
	if err != nil {
		s.markTranscriptFailed(transcriptID)
		return nil, err
	}
	return result, nil
}

// sliceAudio decides between a single whole-file chunk and overlapped
// windows based on the decoded duration. Inputs the codec cannot decode
// stay whole; the provider handles the container.
func (s *Scheduler) sliceAudio(rec *store.FileRecord, data []byte) ([]audio.Chunk, error) {
	duration, err := s.segmenter.Duration(data)
	if err != nil || duration <= s.cfg.ChunkThresholdSeconds {
		return []audio.Chunk{{
			Data:      data,
			StartTime: 0,
			EndTime:   duration,
			Duration:  duration,
			Index:     0,
		}}, nil
	}

	chunks, err := s.segmenter.Slice(rec.Name, data, 0, duration, s.cfg.ChunkSeconds, s.cfg.OverlapSeconds)
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

// transcribeChunks runs the chunks through the batch executor and flattens
// the per-chunk segments back into chunk-index order with absolute times.
func (s *Scheduler) transcribeChunks(ctrl *taskControl, taskID string, rec *store.FileRecord, chunks []audio.Chunk, opts TaskOptions) ([]transcriber.Segment, error) {
	batchCfg := s.cfg.Batch
	if batchCfg == nil {
		batchCfg = batch.AdaptiveConfig(len(chunks))
	}
	exec, err := batch.NewExecutor[audio.Chunk, []transcriber.Segment](
		batchCfg,
		batch.WithProgress[audio.Chunk, []transcriber.Segment](func(p batch.Progress) {
			// map batch progress into the 5..90 band of task progress
			s.setProgress(taskID, 5+p.Percentage*0.85)
		}),
		// permanent failures (bad credentials, invalid audio) fail the
		// task on first occurrence instead of burning batch retries
		batch.WithRetryable[audio.Chunk, []transcriber.Segment](func(err error) bool {
			return transcriber.Classify(err).Retryable
		}),
	)
	if err != nil {
		return nil, err
	}

	worker := func(ctx context.Context, items []audio.Chunk) ([][]transcriber.Segment, error) {
		out := make([][]transcriber.Segment, 0, len(items))
		for _, chunk := range items {
			if err := ctrl.wait(ctx); err != nil {
				return nil, err
			}

			res, err := s.client.Transcribe(ctx, transcriber.File{
				Name:    fmt.Sprintf("%s#%03d", rec.Name, chunk.Index),
				Size:    int64(len(chunk.Data)),
				ModTime: rec.ModTime,
				Data:    chunk.Data,
			}, transcriber.Options{
				Language:    opts.Language,
				Model:       opts.Model,
				Prompt:      opts.Prompt,
				Temperature: opts.Temperature,
			})
			if err != nil {
				return nil, fmt.Errorf("chunk %d: %w", chunk.Index, err)
			}

			shifted := make([]transcriber.Segment, len(res.Segments))
			for i, seg := range res.Segments {
				seg.Start += chunk.StartTime
				seg.End += chunk.StartTime
				for j := range seg.Words {
					seg.Words[j].Start += chunk.StartTime
					seg.Words[j].End += chunk.StartTime
				}
				shifted[i] = seg
			}
			out = append(out, shifted)
		}
		return out, nil
	}

	batchRes := exec.Process(ctrl.ctx, chunks, worker)
	observability.RecordChunksProcessed(len(batchRes.Results))

	var segments []transcriber.Segment
	for _, chunkSegs := range batchRes.Results {
		segments = append(segments, chunkSegs...)
	}

	if !batchRes.Success {
		if len(segments) == 0 {
			return nil, fmt.Errorf("transcription failed: %w", batchRes.Errors[0])
		}
		// usable partial transcript; surviving batches carry the task
		s.logger.Warn().
			Str("task_id", taskID).
			Int("failed_batches", len(batchRes.Errors)).
			Msg("partial transcription; proceeding with surviving chunks")
	}

	for i := range segments {
		segments[i].ID = i
	}
	return segments, nil
}

// persistSegments writes segment rows through the storage-tuned executor
// (serial batches) and finalizes the transcript record.
func (s *Scheduler) persistSegments(ctx context.Context, transcriptID string, rec *store.FileRecord, segments []transcriber.Segment, opts TaskOptions) (*TaskResult, error) {
	records := make([]store.SegmentRecord, len(segments))
	texts := make([]string, len(segments))
	for i, seg := range segments {
		records[i] = store.SegmentRecord{
			TranscriptID: transcriptID,
			Index:        i,
			Start:        seg.Start,
			End:          seg.End,
			Text:         seg.Text,
			Confidence:   seg.Confidence,
		}
		texts[i] = seg.Text
	}

	exec, err := batch.NewExecutor[store.SegmentRecord, string](batch.StorageConfig())
	if err != nil {
		return nil, err
	}
	res := exec.Process(ctx, records, func(ctx context.Context, items []store.SegmentRecord) ([]string, error) {
		return s.store.AddSegments(ctx, transcriptID, items)
	})
	if !res.Success {
		s.markTranscriptFailed(transcriptID)
		return nil, fmt.Errorf("persist segments: %w", res.Errors[0])
	}

	if err := s.store.UpdateTranscriptStatus(ctx, transcriptID, store.TranscriptCompleted); err != nil {
		return nil, fmt.Errorf("finalize transcript: %w", err)
	}

	var duration float64
	if n := len(segments); n > 0 {
		duration = segments[n-1].End
	}
	return &TaskResult{
		TranscriptID: transcriptID,
		Text:         strings.Join(texts, " "),
		Language:     opts.Language,
		Duration:     duration,
		SegmentCount: len(segments),
	}, nil
}

func (s *Scheduler) isCancelled(taskID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[taskID]
	return ok && task.Status == StatusCancelled
}

// markTranscriptFailed uses a fresh context so the status write survives
// run cancellation.
func (s *Scheduler) markTranscriptFailed(transcriptID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.store.UpdateTranscriptStatus(ctx, transcriptID, store.TranscriptFailed); err != nil {
		s.logger.Error().Err(err).Str("transcript_id", transcriptID).Msg("failed to mark transcript failed")
	}
}

func snapshot(t *Task) *Task {
	cp := *t
	if t.StartedAt != nil {
		v := *t.StartedAt
		cp.StartedAt = &v
	}
	if t.CompletedAt != nil {
		v := *t.CompletedAt
		cp.CompletedAt = &v
	}
	if t.Result != nil {
		v := *t.Result
		cp.Result = &v
	}
	return &cp
}
