package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"supportbot/internal/blob"
	"supportbot/internal/config"
	"supportbot/internal/metrics"
	"supportbot/internal/models"
	"supportbot/internal/rag"
)

// MaxUploadBytes caps a single document upload.
const MaxUploadBytes = 32 << 20

type TenantRegistry interface {
	CreateTenant(ctx context.Context, t models.Tenant) (models.Tenant, error)
	GetTenant(ctx context.Context, tenantID string) (models.Tenant, error)
}

type Ingester interface {
	Ingest(ctx context.Context, req rag.IngestRequest) (rag.IngestResult, error)
}

// Answerer is the query side of the RAG core; *rag.Service implements it.
type Answerer interface {
	Retrieve(ctx context.Context, tenantID, query string, topK int) ([]models.RankedChunk, error)
	Answer(ctx context.Context, req rag.AnswerRequest) (rag.Answer, error)
	ListDocuments(ctx context.Context, tenantID string) ([]models.DocumentSummary, error)
	DeleteDocument(ctx context.Context, tenantID, documentID string) (models.Document, error)
}

type Options struct {
	Tenants  TenantRegistry
	Ingester Ingester
	RAG      Answerer
	// Blobs is optional; when set, uploaded files are removed with their
	// document.
	Blobs    blob.Store
	Health   func(ctx context.Context) error
	Gatherer prometheus.Gatherer
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
	// FallbackMessage is sent to the client whenever an answer cannot be
	// produced.
	FallbackMessage string
	TopK            int
}

type Server struct {
	tenants  TenantRegistry
	ingester Ingester
	rag      Answerer
	blobs    blob.Store
	health   func(ctx context.Context) error
	gatherer prometheus.Gatherer
	metrics  *metrics.Metrics
	log      *zap.Logger
	fallback string
	topK     int
}

func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if strings.TrimSpace(opts.FallbackMessage) == "" {
		opts.FallbackMessage = config.DefaultFallbackMessage
	}
	return &Server{
		tenants:  opts.Tenants,
		ingester: opts.Ingester,
		rag:      opts.RAG,
		blobs:    opts.Blobs,
		health:   opts.Health,
		gatherer: opts.Gatherer,
		metrics:  opts.Metrics,
		log:      opts.Logger.Named("api"),
		fallback: opts.FallbackMessage,
		topK:     opts.TopK,
	}
}

func (s *Server) Routes() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	r.HandleFunc("/tenants", s.handleCreateTenant).Methods(http.MethodPost)
	r.HandleFunc("/tenants/{tenantID}", s.handleGetTenant).Methods(http.MethodGet)
	r.HandleFunc("/tenants/{tenantID}/documents", s.handleUpload).Methods(http.MethodPost)
	r.HandleFunc("/tenants/{tenantID}/documents", s.handleListDocuments).Methods(http.MethodGet)
	r.HandleFunc("/tenants/{tenantID}/documents/{documentID}", s.handleDeleteDocument).Methods(http.MethodDelete)
	r.HandleFunc("/tenants/{tenantID}/query", s.handleQuery).Methods(http.MethodPost)
	r.HandleFunc("/tenants/{tenantID}/ask", s.handleAsk).Methods(http.MethodPost)

	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
	})
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
	})
	r.Use(s.logRequests)
	return withCORS(r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.health(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleCreateTenant(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name           string `json:"name"`
		WhatsAppNumber string `json:"whatsapp_number"`
		CustomPrompt   string `json:"custom_prompt"`
		OwnerNumber    string `json:"owner_number"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	t, err := s.tenants.CreateTenant(r.Context(), models.Tenant{
		Name:           strings.TrimSpace(req.Name),
		WhatsAppNumber: strings.TrimSpace(req.WhatsAppNumber),
		CustomPrompt:   req.CustomPrompt,
		OwnerNumber:    strings.TrimSpace(req.OwnerNumber),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleGetTenant(w http.ResponseWriter, r *http.Request) {
	t, err := s.tenants.GetTenant(r.Context(), mux.Vars(r)["tenantID"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	tenantID := mux.Vars(r)["tenantID"]
	if r.ContentLength > MaxUploadBytes {
		writeErr(w, http.StatusRequestEntityTooLarge, fmt.Errorf("upload exceeds %d bytes", MaxUploadBytes))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErr(w, http.StatusRequestEntityTooLarge, fmt.Errorf("upload exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid multipart upload: %w", err))
		return
	}
	f, fh, err := r.FormFile("file")
	if err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("no files provided: %w", err))
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("read upload: %w", err))
		return
	}

	res, err := s.ingester.Ingest(r.Context(), rag.IngestRequest{
		TenantID: tenantID,
		Filename: fh.Filename,
		Data:     data,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	code := http.StatusCreated
	if res.Deduplicated {
		code = http.StatusOK
	}
	writeJSON(w, code, res)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.rag.ListDocuments(r.Context(), mux.Vars(r)["tenantID"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if docs == nil {
		docs = []models.DocumentSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	doc, err := s.rag.DeleteDocument(r.Context(), vars["tenantID"], vars["documentID"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if s.blobs != nil {
		key := blob.KeyForHash(doc.TenantID, doc.ContentHash, doc.Name)
		if err := s.blobs.Delete(r.Context(), key); err != nil {
			s.log.Warn("delete document blob", zap.String("key", key), zap.Error(err))
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
		TopK  int    `json:"top_k"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	topK := req.TopK
	if topK <= 0 {
		topK = s.topK
	}
	results, err := s.rag.Retrieve(r.Context(), mux.Vars(r)["tenantID"], req.Query, topK)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if results == nil {
		results = []models.RankedChunk{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

type askResponse struct {
	Answer        string               `json:"answer"`
	ClientID      string               `json:"client_id,omitempty"`
	Sources       []models.RankedChunk `json:"sources,omitempty"`
	RequiresHuman bool                 `json:"requires_human"`
}

// handleAsk answers one inbound client message. Malformed requests and
// unknown tenants are reported as errors; every other failure degrades to
// the fallback message and hands the conversation to a human.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phone   string `json:"phone"`
		Name    string `json:"name"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	tenantID := mux.Vars(r)["tenantID"]
	ans, err := s.rag.Answer(r.Context(), rag.AnswerRequest{
		TenantID: tenantID,
		Phone:    strings.TrimSpace(req.Phone),
		Name:     strings.TrimSpace(req.Name),
		Message:  req.Message,
	})
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, askResponse{Answer: ans.Text, ClientID: ans.ClientID, Sources: ans.Sources})
	case errors.Is(err, rag.ErrValidation), errors.Is(err, rag.ErrNotFound):
		s.fail(w, r, err)
	default:
		s.metrics.Fallback()
		s.log.Warn("answer failed, handing off to advisor",
			zap.String("tenant_id", tenantID),
			zap.String("error_kind", rag.Kind(err)),
			zap.Error(err))
		writeJSON(w, http.StatusOK, askResponse{Answer: s.fallback, RequiresHuman: true})
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= 500 {
		s.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("error_kind", rag.Kind(err)),
			zap.Error(err))
	}
	writeErr(w, code, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, rag.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, rag.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, rag.ErrTenantExists):
		return http.StatusConflict
	case errors.Is(err, rag.ErrProvider):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	apiErr := toAPIError(code, err)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		},
	})
}

type apiError struct {
	Code    string
	Message string
}

// toAPIError keeps 4xx messages (they describe the caller's input) and
// replaces 5xx messages with a generic one.
func toAPIError(status int, err error) apiError {
	switch {
	case status == http.StatusBadGateway:
		return apiError{Code: "SB-API-5020", Message: "Upstream provider unavailable. Retry shortly."}
	case status >= 500:
		raw := ""
		if err != nil {
			raw = strings.ToLower(err.Error())
		}
		switch {
		case strings.Contains(raw, "relation") && strings.Contains(raw, "does not exist"):
			return apiError{Code: "SB-DB-5001", Message: "Database schema is not initialized. Run migrations and retry."}
		case strings.Contains(raw, "dial tcp"), strings.Contains(raw, "connection refused"):
			return apiError{Code: "SB-DB-5002", Message: "Database connection is unavailable. Check local services and retry."}
		case errors.Is(err, rag.ErrDataIntegrity):
			return apiError{Code: "SB-DATA-5003", Message: "Stored data failed an integrity check. Check service logs."}
		default:
			return apiError{Code: "SB-API-5000", Message: "Internal server error. Please retry or check service logs."}
		}
	}

	code := "SB-API-4000"
	switch status {
	case http.StatusBadRequest:
		code = "SB-API-4001"
	case http.StatusNotFound:
		code = "SB-API-4004"
	case http.StatusMethodNotAllowed:
		code = "SB-API-4005"
	case http.StatusConflict:
		code = "SB-API-4009"
	case http.StatusRequestEntityTooLarge:
		code = "SB-API-4013"
	}
	msg := "Request failed."
	if err != nil {
		msg = err.Error()
	}
	return apiError{Code: code, Message: msg}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", sw.status),
			zap.Duration("elapsed", time.Since(start)))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
