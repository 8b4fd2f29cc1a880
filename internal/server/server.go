package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/youming-ai/umuo-transcriber/internal/config"
	"github.com/youming-ai/umuo-transcriber/internal/observability"
	"github.com/youming-ai/umuo-transcriber/internal/scheduler"
	"github.com/youming-ai/umuo-transcriber/internal/store"
	"github.com/youming-ai/umuo-transcriber/internal/transcriber"
)

// Server exposes the transcription pipeline over HTTP and WebSocket.
type Server struct {
	cfg      *config.Config
	store    store.Store
	sched    *scheduler.Scheduler
	logger   zerolog.Logger
	upgrader websocket.Upgrader
}

// New builds the HTTP layer over the store and scheduler.
func New(cfg *config.Config, st store.Store, sched *scheduler.Scheduler) *Server {
	return &Server{
		cfg:    cfg,
		store:  st,
		sched:  sched,
		logger: observability.WithComponent("server"),
		upgrader: websocket.Upgrader{
			// Origin validation is deferred to the reverse proxy in front
			// of this service.
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

// Register installs all routes on mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/files", s.handleUploadFile)
	mux.HandleFunc("GET /v1/files/{id}", s.handleGetFile)

	mux.HandleFunc("POST /v1/tasks", s.handleCreateTask)
	mux.HandleFunc("GET /v1/tasks", s.handleListTasks)
	mux.HandleFunc("GET /v1/tasks/{id}", s.handleGetTask)
	mux.HandleFunc("POST /v1/tasks/{id}/cancel", s.taskAction(s.sched.CancelTask))
	mux.HandleFunc("POST /v1/tasks/{id}/pause", s.taskAction(s.sched.PauseTask))
	mux.HandleFunc("POST /v1/tasks/{id}/resume", s.taskAction(s.sched.ResumeTask))
	mux.HandleFunc("POST /v1/tasks/{id}/retry", s.taskAction(s.sched.RetryTask))

	mux.HandleFunc("GET /v1/queue", s.handleQueue)
	mux.HandleFunc("GET /v1/transcripts/{id}/segments", s.handleGetSegments)
	mux.HandleFunc("GET /v1/events", s.handleEvents)
}

type fileResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Format  string `json:"format"`
	Size    int64  `json:"size"`
	Chunked bool   `json:"chunked"`
}

// handleUploadFile accepts a multipart upload and persists the blob,
// splitting it into storage chunks once it crosses the chunking threshold.
func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("missing file field: %w", err), "")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("read upload: %w", err), "")
		return
	}
	if len(data) == 0 {
		s.writeError(w, http.StatusBadRequest, errors.New("empty upload"), "provide a non-empty audio file")
		return
	}
	observability.RecordAudioBytes(int64(len(data)))

	rec := &store.FileRecord{
		Name:    header.Filename,
		Format:  r.FormValue("format"),
		Size:    int64(len(data)),
		ModTime: time.Now().UTC(),
	}

	chunked := int64(len(data)) > s.cfg.StorageChunkBytes
	if !chunked {
		rec.Data = data
	}
	rec.Chunked = chunked

	fileID, err := s.store.AddFile(r.Context(), rec)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err, "")
		return
	}

	if chunked {
		size := s.cfg.StorageChunkBytes
		for i, off := 0, int64(0); off < int64(len(data)); i, off = i+1, off+size {
			end := off + size
			if end > int64(len(data)) {
				end = int64(len(data))
			}
			if err := s.store.PutChunk(r.Context(), fileID, i, data[off:end]); err != nil {
				s.writeError(w, http.StatusInternalServerError, err, "")
				return
			}
		}
	}

	s.logger.Info().
		Str("file_id", fileID).
		Str("name", header.Filename).
		Int("bytes", len(data)).
		Bool("chunked", chunked).
		Msg("file uploaded")

	s.writeJSON(w, http.StatusCreated, fileResponse{
		ID:      fileID,
		Name:    header.Filename,
		Format:  rec.Format,
		Size:    rec.Size,
		Chunked: chunked,
	})
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.GetFile(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeSchedulerError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, fileResponse{
		ID:      rec.ID,
		Name:    rec.Name,
		Format:  rec.Format,
		Size:    rec.Size,
		Chunked: rec.Chunked,
	})
}

type createTaskRequest struct {
	FileID      string  `json:"fileId"`
	Language    string  `json:"language,omitempty"`
	Model       string  `json:"model,omitempty"`
	Prompt      string  `json:"prompt,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	Priority    int     `json:"priority,omitempty"`
}

// handleCreateTask enqueues a transcription run for an uploaded file.
func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err), "")
		return
	}
	if req.FileID == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("fileId is required"), "")
		return
	}

	rec, err := s.store.GetFile(r.Context(), req.FileID)
	if err != nil {
		s.writeSchedulerError(w, err)
		return
	}

	language := req.Language
	if language == "" {
		language = s.cfg.Language
	}

	task, err := s.sched.AddTask(req.FileID, scheduler.Metadata{
		Filename: rec.Name,
		Size:     rec.Size,
		Duration: rec.Duration,
		Format:   rec.Format,
		Language: language,
	}, scheduler.TaskOptions{
		Language:    language,
		Model:       req.Model,
		Prompt:      req.Prompt,
		Temperature: req.Temperature,
		Priority:    req.Priority,
	})
	if err != nil {
		s.writeSchedulerError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, task)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	if fileID := r.URL.Query().Get("fileId"); fileID != "" {
		task, err := s.sched.GetTaskByFile(fileID)
		if err != nil {
			s.writeSchedulerError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, []*scheduler.Task{task})
		return
	}
	s.writeJSON(w, http.StatusOK, s.sched.ListTasks())
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.sched.GetTask(r.PathValue("id"))
	if err != nil {
		s.writeSchedulerError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, task)
}

// taskAction adapts a scheduler state-change method into a handler.
func (s *Server) taskAction(fn func(string) (*scheduler.Task, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		task, err := fn(r.PathValue("id"))
		if err != nil {
			s.writeSchedulerError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, task)
	}
}

type queueEntry struct {
	Task          *scheduler.Task `json:"task"`
	Position      int             `json:"position"`
	EstimatedWait float64         `json:"estimatedWaitSeconds"`
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	queued := s.sched.ListQueue()
	entries := make([]queueEntry, 0, len(queued))
	for i, task := range queued {
		wait, err := s.sched.EstimatedWait(task.ID)
		if err != nil {
			continue
		}
		entries = append(entries, queueEntry{
			Task:          task,
			Position:      i,
			EstimatedWait: wait.Seconds(),
		})
	}
	s.writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleGetSegments(w http.ResponseWriter, r *http.Request) {
	segments, err := s.store.GetSegmentsByTranscript(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeSchedulerError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, segments)
}

type errorResponse struct {
	Error string `json:"error"`
	Hint  string `json:"hint,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error, hint string) {
	s.writeJSON(w, status, errorResponse{Error: err.Error(), Hint: hint})
}

// writeSchedulerError maps pipeline errors onto HTTP statuses.
func (s *Server) writeSchedulerError(w http.ResponseWriter, err error) {
	var invalid *scheduler.InvalidTransitionError
	var classified *transcriber.Error

	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, scheduler.ErrTaskNotFound):
		s.writeError(w, http.StatusNotFound, err, "")
	case errors.Is(err, scheduler.ErrDuplicateTask):
		s.writeError(w, http.StatusConflict, err, "wait for the active task to finish or cancel it")
	case errors.As(err, &invalid):
		s.writeError(w, http.StatusConflict, err, "")
	case errors.As(err, &classified):
		s.writeError(w, http.StatusBadGateway, err, classified.Hint)
	default:
		s.writeError(w, http.StatusInternalServerError, err, "")
	}
}
