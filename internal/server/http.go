package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/alfredjeanlab/rednight/internal/model"
	"github.com/alfredjeanlab/rednight/internal/service"
)

// maxBodyBytes caps request bodies; config payloads are stored whole.
const maxBodyBytes = 4 << 20

// Error codes produced by the transport itself rather than a coordinator.
const (
	codeInvalidArgument = string(service.CodeInvalidArgument)
	codeNotFound        = string(service.CodeNotFound)
	codeInternal        = "INTERNAL"
)

// NewHTTPHandler returns an http.Handler with all routes registered. Every
// resource route also answers with a trailing slash.
func (s *Server) NewHTTPHandler() http.Handler {
	mux := http.NewServeMux()
	s.handle(mux, http.MethodPost, "/environments", s.handleCreateEnvironment)
	s.handle(mux, http.MethodGet, "/environments", s.handleListEnvironments)
	s.handle(mux, http.MethodGet, "/environments/{environment_id}", s.handleGetEnvironment)
	s.handle(mux, http.MethodDelete, "/environments/{environment_id}", s.handleDeleteEnvironment)
	s.handle(mux, http.MethodPost, "/environments/{environment_id}/configs", s.handleCreateConfig)
	s.handle(mux, http.MethodGet, "/environments/{environment_id}/configs", s.handleListConfigs)
	s.handle(mux, http.MethodGet, "/environments/{environment_id}/configs/{config_id}", s.handleGetConfig)
	s.handle(mux, http.MethodDelete, "/environments/{environment_id}/configs/{config_id}", s.handleDeleteConfig)
	mux.Handle("GET /health", s.instrument("/health", s.handleHealth))
	mux.Handle("GET /metrics", s.instrument("/metrics", s.metrics.Handler().ServeHTTP))
	mux.Handle("/", s.instrument("unmatched", handleNotFound))
	return s.withRequestID(s.logRequests(s.recoverPanics(mux)))
}

func (s *Server) handle(mux *http.ServeMux, method, path string, h http.HandlerFunc) {
	ih := s.instrument(path, h)
	mux.Handle(method+" "+path, ih)
	mux.Handle(method+" "+path+"/{$}", ih)
}

// handleCreateEnvironment handles POST /environments.
func (s *Server) handleCreateEnvironment(w http.ResponseWriter, r *http.Request) {
	var in model.CreateEnvironment
	if !decodeBody(w, r, &in) {
		return
	}
	if err := model.ValidateCreateEnvironment(&in); err != nil {
		writeValidationError(w, err)
		return
	}

	env, err := s.envs.Create(r.Context(), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, env)
}

// handleListEnvironments handles GET /environments.
func (s *Server) handleListEnvironments(w http.ResponseWriter, r *http.Request) {
	q, ok := pageQuery(w, r)
	if !ok {
		return
	}
	page, err := s.envs.List(r.Context(), q)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// handleGetEnvironment handles GET /environments/{environment_id}.
func (s *Server) handleGetEnvironment(w http.ResponseWriter, r *http.Request) {
	envID, ok := pathID(w, r, "environment_id")
	if !ok {
		return
	}
	env, err := s.envs.Get(r.Context(), envID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, env)
}

// handleDeleteEnvironment handles DELETE /environments/{environment_id}.
func (s *Server) handleDeleteEnvironment(w http.ResponseWriter, r *http.Request) {
	envID, ok := pathID(w, r, "environment_id")
	if !ok {
		return
	}
	if err := s.envs.Delete(r.Context(), envID); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCreateConfig handles POST /environments/{environment_id}/configs.
func (s *Server) handleCreateConfig(w http.ResponseWriter, r *http.Request) {
	envID, ok := pathID(w, r, "environment_id")
	if !ok {
		return
	}
	var in model.CreateConfig
	if !decodeBody(w, r, &in) {
		return
	}
	if err := model.ValidateCreateConfig(&in); err != nil {
		writeValidationError(w, err)
		return
	}

	cfg, err := s.configs.Create(r.Context(), envID, in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// handleListConfigs handles GET /environments/{environment_id}/configs.
func (s *Server) handleListConfigs(w http.ResponseWriter, r *http.Request) {
	envID, ok := pathID(w, r, "environment_id")
	if !ok {
		return
	}
	q, ok := pageQuery(w, r)
	if !ok {
		return
	}
	page, err := s.configs.List(r.Context(), envID, q)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// handleGetConfig handles GET /environments/{environment_id}/configs/{config_id}.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	envID, ok := pathID(w, r, "environment_id")
	if !ok {
		return
	}
	id, ok := pathID(w, r, "config_id")
	if !ok {
		return
	}
	cfg, err := s.configs.Get(r.Context(), envID, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// handleDeleteConfig handles DELETE /environments/{environment_id}/configs/{config_id}.
func (s *Server) handleDeleteConfig(w http.ResponseWriter, r *http.Request) {
	envID, ok := pathID(w, r, "environment_id")
	if !ok {
		return
	}
	id, ok := pathID(w, r, "config_id")
	if !ok {
		return
	}
	if err := s.configs.Delete(r.Context(), envID, id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type healthResponse struct {
	Status string        `json:"status"`
	Checks []CheckResult `json:"checks"`
}

// handleHealth handles GET /health. It answers 503 when any backing store
// is unreachable.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks, healthy := s.Check(r.Context())
	if !healthy {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Checks: checks})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Checks: checks})
}

func handleNotFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, codeNotFound, "404: Not Found", "The requested route does not exist")
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidArgument, "invalid JSON body", err.Error())
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidArgument, "invalid "+name, strconv.Quote(raw)+" is not an integer identifier")
		return 0, false
	}
	return id, true
}

// pageQuery reads next_page and page_size. The page size is clamped by the
// coordinator; only a non-numeric value is rejected here.
func pageQuery(w http.ResponseWriter, r *http.Request) (model.PageQuery, bool) {
	q := model.PageQuery{NextPage: r.URL.Query().Get("next_page")}
	if v := r.URL.Query().Get("page_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidArgument, "invalid page_size", strconv.Quote(v)+" is not an integer")
			return q, false
		}
		q.PageSize = n
	}
	return q, true
}

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	Description string `json:"description"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, code, message, description string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message, Description: description})
}

func writeValidationError(w http.ResponseWriter, err error) {
	var ve *model.ValidationError
	if errors.As(err, &ve) && len(ve.Errors) > 0 {
		first := ve.Errors[0]
		writeError(w, http.StatusBadRequest, codeInvalidArgument, first.Field+" "+first.Message, ve.Error())
		return
	}
	writeError(w, http.StatusBadRequest, codeInvalidArgument, "invalid request", err.Error())
}

// writeServiceError maps a coordinator error onto its HTTP status.
func writeServiceError(w http.ResponseWriter, err error) {
	var se *service.Error
	if !errors.As(err, &se) {
		writeError(w, http.StatusInternalServerError, codeInternal, "internal error", err.Error())
		return
	}
	writeError(w, httpStatus(se.Code), string(se.Code), se.Message, se.Description())
}

func httpStatus(code service.Code) int {
	switch code {
	case service.CodeNotFound:
		return http.StatusNotFound
	case service.CodeInvalidArgument:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
