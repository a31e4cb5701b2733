package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/blackmichael/tumblr-archive/internal/config"
	"github.com/blackmichael/tumblr-archive/internal/domain"
)

// maxBodyBytes bounds the size of a PUT /posts request.
const maxBodyBytes = 32 << 20

// Server is the HTTP server exposing the archive.
type Server struct {
	cfg        *config.Config
	archive    *domain.ArchiveService
	logger     *slog.Logger
	httpServer *http.Server
}

// NewServer creates a new HTTP server with the given archive service.
func NewServer(cfg *config.Config, archive *domain.ArchiveService, logger *slog.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		archive: archive,
		logger:  logger,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Minute, // blog syncs run inside the request
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the server's routes wrapped in request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /posts", s.handleListPosts)
	mux.HandleFunc("GET /posts/{id}", s.handleGetPost)
	mux.HandleFunc("PUT /posts", s.handlePutPosts)
	mux.HandleFunc("DELETE /posts/{id}", s.handleDeletePost)
	mux.HandleFunc("POST /blogs/{blog}/sync", s.handleSyncBlog)
	return withLogging(s.logger, mux)
}

// Start begins listening for HTTP requests. It blocks until the server is
// shut down or an error occurs.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := s.archive.GetAll(r.Context())
	if err != nil {
		s.logger.Error("failed to list posts", "request_id", requestID(r), "error", err)
		writeError(w, http.StatusInternalServerError, "InternalError", "failed to list posts")
		return
	}
	if posts == nil {
		posts = []domain.Post{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"posts": posts})
}

func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	post, found, err := s.archive.Get(r.Context(), id)
	if err != nil {
		s.logger.Error("failed to get post", "request_id", requestID(r), "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "InternalError", "failed to get post")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "NotFound", fmt.Sprintf("post %d not found", id))
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (s *Server) handlePutPosts(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "failed to read body")
		return
	}

	posts, err := domain.DecodePosts(body)
	if err != nil {
		s.logger.Warn("invalid post body", "request_id", requestID(r), "error", err)
		writeError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}

	if err := s.archive.Put(r.Context(), posts...); err != nil {
		s.logger.Error("failed to put posts", "request_id", requestID(r), "count", len(posts), "error", err)
		writeError(w, http.StatusInternalServerError, "InternalError", "failed to store posts")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"stored": len(posts)})
}

func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	if err := s.archive.Delete(r.Context(), id); err != nil {
		s.logger.Error("failed to delete post", "request_id", requestID(r), "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "InternalError", "failed to delete post")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSyncBlog(w http.ResponseWriter, r *http.Request) {
	blog := r.PathValue("blog")

	n, err := s.archive.SyncBlog(r.Context(), blog)
	if errors.Is(err, domain.ErrNoSource) {
		writeError(w, http.StatusServiceUnavailable, "Unavailable", "syncing is not configured")
		return
	}
	if err != nil {
		s.logger.Error("failed to sync blog", "request_id", requestID(r), "blog", blog, "stored", n, "error", err)
		writeError(w, http.StatusBadGateway, "SyncFailed", fmt.Sprintf("sync stopped after %d posts", n))
		return
	}

	s.logger.Info("synced blog", "request_id", requestID(r), "blog", blog, "stored", n)
	writeJSON(w, http.StatusOK, map[string]any{"blog": blog, "stored": n})
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "id must be an integer")
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, map[string]string{
		"error":   errType,
		"message": message,
	})
}

type requestIDKey struct{}

const requestIDHeader = "X-Request-Id"

func requestID(r *http.Request) string {
	id, _ := r.Context().Value(requestIDKey{}).(string)
	return id
}

func withLogging(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id))

		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		logger.Info("http request",
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration", time.Since(start),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
