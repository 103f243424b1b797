// Package server exposes the comparison pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/menta2k/ssimdiff/internal/config"
	"github.com/menta2k/ssimdiff/internal/logging"
	"github.com/menta2k/ssimdiff/pkg/client"
	"github.com/menta2k/ssimdiff/pkg/processing"
	"github.com/menta2k/ssimdiff/pkg/types"
)

// RequestIDHeader carries the per-request identifier
const RequestIDHeader = "X-Request-ID"

// Form field names accepted by /analyze
const (
	FieldReference   = "reference"
	FieldSuspect     = "suspect"
	FieldGroundTruth = "gt_mask"
)

type ctxKey struct{}

// AnalyzeResponse is the JSON body returned by /analyze
type AnalyzeResponse struct {
	SSIMScore  float64     `json:"ssim_score"`
	Boxes      []types.Box `json:"boxes"`
	OverlayB64 string      `json:"overlay_b64"`
	HeatmapB64 string      `json:"heatmap_b64"`
	IoU        *float64    `json:"iou"`
	Message    string      `json:"message"`
}

// Server serves /analyze and /health
type Server struct {
	comparer  client.Comparer
	processor *processing.Processor
	cfg       config.ServerConfig
	log       *logging.Logger
}

// New creates a Server around comparer
func New(comparer client.Comparer, cfg config.ServerConfig, log *logging.Logger) *Server {
	if log == nil {
		log = logging.Discard()
	}
	return &Server{
		comparer:  comparer,
		processor: processing.NewProcessor(),
		cfg:       cfg,
		log:       log,
	}
}

// Handler returns the routed handler wrapped in request ID, logging and
// CORS middleware
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /analyze", s.AnalyzeHandler)
	mux.HandleFunc("GET /health", s.HealthHandler)

	return s.requestID(s.logRequests(s.cors(mux)))
}

// HealthHandler reports liveness
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

// AnalyzeHandler handles POST /analyze
func (s *Server) AnalyzeHandler(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.MaxUploadBytes()
	if r.ContentLength > limit {
		respondError(w, "Payload too large", http.StatusRequestEntityTooLarge)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			respondError(w, "Payload too large", http.StatusRequestEntityTooLarge)
			return
		}
		respondError(w, "Failed to parse form", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	ref, status, err := s.readImage(r, FieldReference, true)
	if err != nil {
		respondError(w, err.Error(), status)
		return
	}
	sus, status, err := s.readImage(r, FieldSuspect, true)
	if err != nil {
		respondError(w, err.Error(), status)
		return
	}
	gt, status, err := s.readImage(r, FieldGroundTruth, false)
	if err != nil {
		respondError(w, err.Error(), status)
		return
	}

	start := time.Now()
	result, err := s.comparer.Analyze(ref, sus, gt)
	if err != nil {
		if errors.Is(err, types.ErrInvalidInput) {
			respondError(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.log.Error("analysis failed", "request_id", RequestID(r.Context()), "err", err)
		respondError(w, "Analysis failed", http.StatusInternalServerError)
		return
	}

	overlay, err := s.processor.EncodeBase64(result.Overlay, "png", 0)
	if err != nil {
		respondError(w, "Failed to encode overlay", http.StatusInternalServerError)
		return
	}
	heatmap, err := s.processor.EncodeBase64(result.Heatmap, "png", 0)
	if err != nil {
		respondError(w, "Failed to encode heatmap", http.StatusInternalServerError)
		return
	}

	s.log.Info("analysis complete",
		"request_id", RequestID(r.Context()),
		"ssim", fmt.Sprintf("%.4f", result.SSIMScore),
		"boxes", len(result.Boxes),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)

	respondJSON(w, AnalyzeResponse{
		SSIMScore:  result.SSIMScore,
		Boxes:      result.Boxes,
		OverlayB64: overlay,
		HeatmapB64: heatmap,
		IoU:        result.IoU,
		Message:    "ok",
	}, http.StatusOK)
}

// readImage decodes the upload in field. A missing optional field returns
// a nil image and no error.
func (s *Server) readImage(r *http.Request, field string, required bool) (image.Image, int, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		if required {
			return nil, http.StatusBadRequest, fmt.Errorf("missing form field %q", field)
		}
		return nil, 0, nil
	}
	if err != nil {
		return nil, http.StatusBadRequest, fmt.Errorf("failed to read %q: %w", field, err)
	}
	defer file.Close()

	if ct := partType(header); !slices.Contains(s.cfg.AllowedTypes, ct) {
		return nil, http.StatusUnsupportedMediaType, fmt.Errorf("unsupported media type: %s", ct)
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, http.StatusBadRequest, fmt.Errorf("failed to read %q: %w", field, err)
	}

	img, _, err := s.processor.DecodeBytes(data)
	if err != nil {
		return nil, http.StatusBadRequest, errors.New("unsupported image or decode error")
	}
	return img, 0, nil
}

func partType(h *multipart.FileHeader) string {
	ct := h.Header.Get("Content-Type")
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return ct
	}
	return mt
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case slices.Contains(s.cfg.AllowedOrigins, "*"):
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && slices.Contains(s.cfg.AllowedOrigins, origin):
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+RequestIDHeader)
		w.Header().Set("Access-Control-Expose-Headers", RequestIDHeader)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug("request",
			"request_id", RequestID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"elapsed", time.Since(start).Round(time.Microsecond),
		)
	})
}

// RequestID returns the request identifier stored by the middleware
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func respondJSON(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, map[string]string{"error": message}, status)
}
