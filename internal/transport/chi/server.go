// Package chi is the HTTP transport: hand-written JSON handlers on a chi
// router, with sentinel-error mapping to status codes.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/memdex/internal/domain"
	"github.com/kailas-cloud/memdex/internal/domain/search/request"
	healthuc "github.com/kailas-cloud/memdex/internal/usecase/health"
	"github.com/kailas-cloud/memdex/internal/usecase/knowledge"
)

const maxBatchSize = 100

// warnSnapshotFailed is returned when an insert succeeded in memory but the
// snapshot save behind it did not.
const warnSnapshotFailed = "document stored, but the snapshot save failed; data is not durable until the next successful save"

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server holds the HTTP handlers.
type Server struct {
	knowledge     *knowledge.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler

	defaultTopK  int
	defaultBoost float64
}

// NewServer creates an HTTP API server.
func NewServer(
	knowledgeSvc *knowledge.Service,
	healthSvc *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		knowledge: knowledgeSvc,
		health:    healthSvc,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrDocumentNotFound, http.StatusNotFound, codeDocumentNotFound),
		sentinelHandler(domain.ErrAlreadyExists, http.StatusConflict, codeAlreadyExists),
		sentinelHandler(domain.ErrInvalidDocument, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusBadRequest, codeVectorDimMismatch),
		sentinelHandler(domain.ErrEmbeddingProvider, http.StatusBadGateway, codeEmbeddingProvider),
		sentinelHandler(domain.ErrPersistence, http.StatusInternalServerError, codePersistenceFailed),
	}
	return s
}

// WithSearchDefaults sets the topK and boost factor applied to search
// requests that omit them. Zero values keep the domain defaults.
func (s *Server) WithSearchDefaults(topK int, boostFactor float64) *Server {
	s.defaultTopK = topK
	s.defaultBoost = boostFactor
	return s
}

// Routes registers every endpoint on the given router.
func (s *Server) Routes(r chi.Router) {
	r.Post("/add", s.Add)
	r.Post("/batch_add", s.BatchAdd)
	r.Post("/search", s.Search)
	r.Get("/stats", s.Stats)
	r.Post("/save", s.Save)
	r.Post("/rebuild_index", s.RebuildIndex)
	r.Post("/reset", s.Reset)
	r.Post("/import", s.Import)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// Add handles POST /add.
func (s *Server) Add(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	id, err := s.knowledge.Add(ctx, knowledge.AddItem{
		ID:       req.ID,
		Content:  req.Content,
		Tags:     req.Tags,
		Metadata: req.Metadata,
	})
	if err != nil {
		// The document can be stored even when the snapshot save after it
		// failed; report the id with a durability warning instead of a 500.
		if id != "" && errors.Is(err, domain.ErrPersistence) {
			s.logger.Warn("Document stored but snapshot save failed",
				zap.String("id", id), zap.Error(err))
			setEmbeddingHeaders(w, usage)
			writeJSON(w, http.StatusCreated, addResponse{
				Success:    true,
				DocumentID: id,
				Warning:    warnSnapshotFailed,
			})
			return
		}
		s.handleDomainError(w, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusCreated, addResponse{Success: true, DocumentID: id})
}

// BatchAdd handles POST /batch_add.
func (s *Server) BatchAdd(w http.ResponseWriter, r *http.Request) {
	var req batchAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if len(req.Documents) == 0 || len(req.Documents) > maxBatchSize {
		writeError(w, http.StatusBadRequest, codeValidationFailed,
			"documents count must be between 1 and "+strconv.Itoa(maxBatchSize))
		return
	}

	items := make([]knowledge.AddItem, 0, len(req.Documents))
	for _, d := range req.Documents {
		items = append(items, knowledge.AddItem{
			ID:       d.ID,
			Content:  d.Content,
			Tags:     d.Tags,
			Metadata: d.Metadata,
		})
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	ids, err := s.knowledge.BatchAdd(ctx, items)
	if err != nil {
		if len(ids) > 0 && errors.Is(err, domain.ErrPersistence) {
			s.logger.Warn("Batch stored but snapshot save failed",
				zap.Int("documents", len(ids)), zap.Error(err))
			setEmbeddingHeaders(w, usage)
			writeJSON(w, http.StatusCreated, batchAddResponse{
				Success:     true,
				DocumentIDs: ids,
				Count:       len(ids),
				Warning:     warnSnapshotFailed,
			})
			return
		}
		s.handleDomainError(w, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusCreated, batchAddResponse{
		Success:     true,
		DocumentIDs: ids,
		Count:       len(ids),
	})
}

// Search handles POST /search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	// legacy `tags` means tags_all; honored only when tags_all is absent
	tagsAll := req.TagsAll
	if tagsAll == nil {
		tagsAll = req.Tags
	}

	if req.TopK == 0 {
		req.TopK = s.defaultTopK
	}
	if req.BoostFactor == 0 {
		req.BoostFactor = s.defaultBoost
	}

	if req.TopK < 0 || req.TopK > request.MaxTopK {
		writeError(w, http.StatusBadRequest, codeValidationFailed,
			"top_k must be between 1 and "+strconv.Itoa(request.MaxTopK))
		return
	}

	searchReq, err := request.New(
		req.Query, tagsAll, req.TagsAny, req.PriorityTags,
		req.MetadataFilter, req.TopK, req.BoostFactor,
	)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	results, err := s.knowledge.Search(ctx, &searchReq)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]searchResultItem, 0, len(results))
	for i := range results {
		doc := results[i].Document()
		items = append(items, searchResultItem{
			ID:       doc.ID(),
			Content:  doc.Content(),
			Tags:     doc.Tags(),
			Metadata: doc.Metadata(),
			Score:    results[i].Score(),
		})
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, searchResponse{
		Success: true,
		Results: items,
		Count:   len(items),
	})
}

// Stats handles GET /stats.
func (s *Server) Stats(w http.ResponseWriter, r *http.Request) {
	st := s.knowledge.Stats()
	writeJSON(w, http.StatusOK, statsResponse{
		Success:       true,
		DocumentCount: st.DocumentCount,
		VectorCount:   st.VectorCount,
		TagCount:      st.TagCount,
		Tags:          st.Tags,
		Dimensions:    st.Dim,
	})
}

// Save handles POST /save.
func (s *Server) Save(w http.ResponseWriter, r *http.Request) {
	if err := s.knowledge.Save(r.Context()); err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{Success: true})
}

// RebuildIndex handles POST /rebuild_index.
func (s *Server) RebuildIndex(w http.ResponseWriter, r *http.Request) {
	ctx, usage := domain.NewContextWithUsage(r.Context())
	if err := s.knowledge.RebuildIndex(ctx); err != nil {
		s.handleDomainError(w, err)
		return
	}
	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, rebuildResponse{
		Success:       true,
		DocumentCount: s.knowledge.Stats().DocumentCount,
	})
}

// Reset handles POST /reset.
func (s *Server) Reset(w http.ResponseWriter, r *http.Request) {
	if err := s.knowledge.Reset(r.Context()); err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{Success: true})
}

// Import handles POST /import.
func (s *Server) Import(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "content is required")
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	stats, err := s.knowledge.Import(ctx, knowledge.AddItem{
		Content:  req.Content,
		Tags:     req.Tags,
		Metadata: req.Metadata,
	}, req.MaxChunkSize)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusCreated, importResponse{
		Success:     true,
		Chunks:      stats.Chunks,
		DocumentIDs: stats.DocumentIDs,
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage != nil && usage.Used {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.TotalTokens))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code errorCode, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrDocumentNotFound,
		domain.ErrAlreadyExists,
		domain.ErrInvalidDocument,
		domain.ErrVectorDimMismatch,
		domain.ErrEmbeddingProvider,
		domain.ErrPersistence,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code errorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
