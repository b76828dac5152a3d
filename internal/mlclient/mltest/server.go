// Package mltest содержит in-memory реализацию REST API сервиса пайплайнов
// для тестов клиента, trigger и вложенного run.
//
// Сервер хранит endpoints, опубликованные пайплайны и runs в памяти.
// Статусы run задаются сценарием: каждый GET /runs/{id} возвращает
// следующий статус сценария, последний статус повторяется.
package mltest

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/forecastrun/internal/domain"
)

// StatusInterrupt в сценарии заставляет сервер ответить ошибкой RUN_INTERRUPTED.
const StatusInterrupt domain.RunStatus = "__interrupt__"

// DefaultScript используется для runs без явного сценария.
var DefaultScript = []domain.RunStatus{domain.RunStatusRunning, domain.RunStatusCompleted}

type fakeRun struct {
	run    domain.Run
	script []domain.RunStatus
	pos    int
	def    *domain.PipelineDefinition
}

// Server эмулирует сервис пайплайнов для одного рабочего пространства.
type Server struct {
	srv    *httptest.Server
	logger *slog.Logger

	mu           sync.Mutex
	workspace    domain.Workspace
	datastore    domain.Datastore
	computes     map[string]domain.ComputeTarget
	endpoints    map[string]*domain.Endpoint
	pipelines    []domain.PublishedPipeline
	runs         map[string]*fakeRun
	runOrder     []string
	datasets     []domain.PartitionRequest
	environments []domain.Environment
	scripts      map[string][]domain.RunStatus
	failures     map[string]errorDetail
	failStatus   map[string]int
	cancels      []string
	calls        map[string]int
}

// NewServer запускает сервер с рабочим пространством ws и кластером по умолчанию.
func NewServer(ws string) *Server {
	s := &Server{
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		workspace:  domain.Workspace{Name: ws, Location: "westeurope"},
		datastore:  domain.Datastore{Name: "workspaceblobstore", Type: "AzureBlob", IsDefault: true},
		computes:   make(map[string]domain.ComputeTarget),
		endpoints:  make(map[string]*domain.Endpoint),
		runs:       make(map[string]*fakeRun),
		scripts:    make(map[string][]domain.RunStatus),
		failures:   make(map[string]errorDetail),
		failStatus: make(map[string]int),
		calls:      make(map[string]int),
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)
	s.srv = httptest.NewServer(recovery(s.logger, mux))
	return s
}

// URL возвращает базовый URL сервера.
func (s *Server) URL() string {
	return s.srv.URL
}

// Workspace возвращает имя рабочего пространства.
func (s *Server) Workspace() string {
	return s.workspace.Name
}

// Close останавливает сервер.
func (s *Server) Close() {
	s.srv.Close()
}

// --- Настройка состояния ---

// AddCompute добавляет compute target.
func (s *Server) AddCompute(ct domain.ComputeTarget) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.computes[ct.Name] = ct
}

// SetScript задаёт сценарий статусов для новых runs эксперимента.
func (s *Server) SetScript(experiment string, statuses ...domain.RunStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[experiment] = statuses
}

// Fail заставляет операцию op отвечать ошибкой, пока не вызван ClearFailures.
// Имена операций совпадают с Calls.
func (s *Server) Fail(op string, status int, code, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = errorDetail{Code: code, Message: message}
	s.failStatus[op] = status
}

// ClearFailures снимает все ошибки, заданные через Fail.
func (s *Server) ClearFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = make(map[string]errorDetail)
	s.failStatus = make(map[string]int)
}

// --- Наблюдение ---

// Calls возвращает число вызовов операции.
func (s *Server) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// Endpoint возвращает копию endpoint по имени.
func (s *Server) Endpoint(name string) (domain.Endpoint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ep, ok := s.endpoints[name]
	if !ok {
		return domain.Endpoint{}, false
	}
	return copyEndpoint(ep), true
}

// EndpointCount возвращает число опубликованных endpoints.
func (s *Server) EndpointCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.endpoints)
}

// Runs возвращает все runs в порядке отправки.
func (s *Server) Runs() []domain.Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	runs := make([]domain.Run, 0, len(s.runOrder))
	for _, id := range s.runOrder {
		runs = append(runs, s.runs[id].run)
	}
	return runs
}

// SubmittedPipeline возвращает определение пайплайна, отправленного с run.
func (s *Server) SubmittedPipeline(runID string) (domain.PipelineDefinition, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fr, ok := s.runs[runID]
	if !ok || fr.def == nil {
		return domain.PipelineDefinition{}, false
	}
	return *fr.def, true
}

// Cancels возвращает ID отменённых runs.
func (s *Server) Cancels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.cancels...)
}

// Partitions возвращает полученные запросы на партиционирование.
func (s *Server) Partitions() []domain.PartitionRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.PartitionRequest(nil), s.datasets...)
}

// Environments возвращает зарегистрированные окружения.
func (s *Server) Environments() []domain.Environment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Environment(nil), s.environments...)
}

// --- Routes ---

func (s *Server) registerRoutes(mux *http.ServeMux) {
	const base = "/api/v1/workspaces/{ws}"

	mux.HandleFunc("GET "+base, s.handle("get_workspace", s.getWorkspace))
	mux.HandleFunc("GET "+base+"/datastores/default", s.handle("get_datastore", s.getDatastore))
	mux.HandleFunc("GET "+base+"/computes/{name}", s.handle("get_compute", s.getCompute))
	mux.HandleFunc("GET "+base+"/endpoints/{name}", s.handle("get_endpoint", s.getEndpoint))
	mux.HandleFunc("POST "+base+"/endpoints", s.handle("publish_endpoint", s.publishEndpoint))
	mux.HandleFunc("POST "+base+"/endpoints/{name}/versions", s.handle("add_version", s.addVersion))
	mux.HandleFunc("POST "+base+"/pipelines", s.handle("publish_pipeline", s.publishPipeline))
	mux.HandleFunc("POST "+base+"/datasets/partition", s.handle("partition_dataset", s.partitionDataset))
	mux.HandleFunc("POST "+base+"/environments", s.handle("register_environment", s.registerEnvironment))
	mux.HandleFunc("POST "+base+"/experiments/{exp}/runs", s.handle("submit_run", s.submitRun))
	mux.HandleFunc("GET "+base+"/experiments/{exp}/runs", s.handle("list_runs", s.listRuns))
	mux.HandleFunc("GET "+base+"/runs/{id}", s.handle("get_run", s.getRun))
	mux.HandleFunc("POST "+base+"/runs/{id}/cancel", s.handle("cancel_run", s.cancelRun))
}

// handle считает вызовы, проверяет рабочее пространство и заданные ошибки.
// Обработчики вызываются под s.mu.
func (s *Server) handle(op string, fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()

		s.calls[op]++

		if r.PathValue("ws") != s.workspace.Name {
			notFound(w, fmt.Sprintf("workspace %s not found", r.PathValue("ws")))
			return
		}
		if fail, ok := s.failures[op]; ok {
			writeError(w, s.failStatus[op], fail.Code, fail.Message)
			return
		}
		fn(w, r)
	}
}

func (s *Server) getWorkspace(w http.ResponseWriter, _ *http.Request) {
	success(w, s.workspace)
}

func (s *Server) getDatastore(w http.ResponseWriter, _ *http.Request) {
	success(w, s.datastore)
}

func (s *Server) getCompute(w http.ResponseWriter, r *http.Request) {
	ct, ok := s.computes[r.PathValue("name")]
	if !ok {
		notFound(w, fmt.Sprintf("compute %s not found in workspace", r.PathValue("name")))
		return
	}
	success(w, ct)
}

func (s *Server) getEndpoint(w http.ResponseWriter, r *http.Request) {
	ep, ok := s.endpoints[r.PathValue("name")]
	if !ok {
		notFound(w, fmt.Sprintf("pipeline endpoint %s not found in workspace", r.PathValue("name")))
		return
	}
	success(w, copyEndpoint(ep))
}

type publishRequest struct {
	Name        string                    `json:"name"`
	Description string                    `json:"description"`
	Pipeline    domain.PipelineDefinition `json:"pipeline"`
}

func (s *Server) publishEndpoint(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		badRequest(w, "invalid endpoint request")
		return
	}
	if _, exists := s.endpoints[req.Name]; exists {
		writeError(w, http.StatusConflict, "CONFLICT", fmt.Sprintf("endpoint %s already exists", req.Name))
		return
	}

	now := time.Now().UTC()
	p := s.storePipeline(req.Name+"_Pipeline", req.Description, now)
	ep := &domain.Endpoint{
		ID:             uuid.NewString(),
		Name:           req.Name,
		Description:    req.Description,
		DefaultVersion: 1,
		Versions:       []domain.EndpointVersion{{Version: 1, PipelineID: p.ID, IsDefault: true, CreatedAt: now}},
		CreatedAt:      now,
	}
	s.endpoints[req.Name] = ep
	created(w, copyEndpoint(ep))
}

func (s *Server) publishPipeline(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		badRequest(w, "invalid pipeline request")
		return
	}
	created(w, s.storePipeline(req.Name, req.Description, time.Now().UTC()))
}

func (s *Server) storePipeline(name, description string, now time.Time) domain.PublishedPipeline {
	p := domain.PublishedPipeline{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		CreatedAt:   now,
	}
	s.pipelines = append(s.pipelines, p)
	return p
}

func (s *Server) addVersion(w http.ResponseWriter, r *http.Request) {
	ep, ok := s.endpoints[r.PathValue("name")]
	if !ok {
		notFound(w, fmt.Sprintf("pipeline endpoint %s not found in workspace", r.PathValue("name")))
		return
	}

	var req struct {
		PipelineID string `json:"pipeline_id"`
		SetDefault bool   `json:"set_default"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PipelineID == "" {
		badRequest(w, "pipeline_id is required")
		return
	}

	next := len(ep.Versions) + 1
	if req.SetDefault {
		for i := range ep.Versions {
			ep.Versions[i].IsDefault = false
		}
		ep.DefaultVersion = next
	}
	ep.Versions = append(ep.Versions, domain.EndpointVersion{
		Version:    next,
		PipelineID: req.PipelineID,
		IsDefault:  req.SetDefault,
		CreatedAt:  time.Now().UTC(),
	})
	success(w, copyEndpoint(ep))
}

func (s *Server) partitionDataset(w http.ResponseWriter, r *http.Request) {
	var req domain.PartitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SourcePath == "" {
		badRequest(w, "source_path is required")
		return
	}
	s.datasets = append(s.datasets, req)
	created(w, domain.TabularDataset{
		ID:            uuid.NewString(),
		Name:          req.Name,
		Datastore:     req.Datastore,
		Path:          req.TargetPath,
		PartitionKeys: req.PartitionKeys,
		CreatedAt:     time.Now().UTC(),
	})
}

func (s *Server) registerEnvironment(w http.ResponseWriter, r *http.Request) {
	var env domain.Environment
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil || env.Name == "" {
		badRequest(w, "environment name is required")
		return
	}
	count := 0
	for _, e := range s.environments {
		if e.Name == env.Name {
			count++
		}
	}
	env.Version = strconv.Itoa(count + 1)
	s.environments = append(s.environments, env)
	created(w, env)
}

func (s *Server) submitRun(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EndpointID string                     `json:"endpoint_id"`
		Pipeline   *domain.PipelineDefinition `json:"pipeline"`
		Parameters map[string]string          `json:"parameters"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid run request")
		return
	}
	if (req.EndpointID == "") == (req.Pipeline == nil) {
		badRequest(w, "exactly one of endpoint_id or pipeline is required")
		return
	}
	if req.EndpointID != "" && !s.hasEndpointID(req.EndpointID) {
		notFound(w, fmt.Sprintf("pipeline endpoint %s not found in workspace", req.EndpointID))
		return
	}

	experiment := r.PathValue("exp")
	script := s.scripts[experiment]
	if len(script) == 0 {
		script = DefaultScript
	}

	fr := &fakeRun{
		run: domain.Run{
			ID:         uuid.NewString(),
			Experiment: experiment,
			Status:     domain.RunStatusNotStarted,
			EndpointID: req.EndpointID,
			Parameters: req.Parameters,
			CreatedAt:  time.Now().UTC(),
		},
		script: script,
		def:    req.Pipeline,
	}
	s.runs[fr.run.ID] = fr
	s.runOrder = append(s.runOrder, fr.run.ID)
	created(w, fr.run)
}

func (s *Server) hasEndpointID(id string) bool {
	for _, ep := range s.endpoints {
		if ep.ID == id {
			return true
		}
	}
	return false
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	runs := []domain.Run{}
	for i := len(s.runOrder) - 1; i >= 0; i-- {
		fr := s.runs[s.runOrder[i]]
		if fr.run.Experiment != r.PathValue("exp") {
			continue
		}
		runs = append(runs, fr.run)
		if limit > 0 && len(runs) == limit {
			break
		}
	}
	success(w, runs)
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	fr, ok := s.runs[r.PathValue("id")]
	if !ok {
		notFound(w, fmt.Sprintf("run %s not found", r.PathValue("id")))
		return
	}

	if !fr.run.Status.IsTerminal() && fr.pos < len(fr.script) {
		next := fr.script[fr.pos]
		fr.pos++
		if next == StatusInterrupt {
			writeError(w, http.StatusConflict, codeRunInterrupted, "run interrupted")
			return
		}
		s.setStatus(fr, next)
	}
	success(w, fr.run)
}

func (s *Server) cancelRun(w http.ResponseWriter, r *http.Request) {
	fr, ok := s.runs[r.PathValue("id")]
	if !ok {
		notFound(w, fmt.Sprintf("run %s not found", r.PathValue("id")))
		return
	}
	s.cancels = append(s.cancels, fr.run.ID)
	if !fr.run.Status.IsTerminal() {
		s.setStatus(fr, domain.RunStatusCanceled)
	}
	success(w, fr.run)
}

func (s *Server) setStatus(fr *fakeRun, status domain.RunStatus) {
	now := time.Now().UTC()
	if fr.run.StartedAt == nil && status == domain.RunStatusRunning {
		fr.run.StartedAt = &now
	}
	fr.run.Status = status
	if status.IsTerminal() {
		fr.run.FinishedAt = &now
		if status == domain.RunStatusFailed {
			fr.run.Error = "step r-forecast failed"
		}
	}
}

func copyEndpoint(ep *domain.Endpoint) domain.Endpoint {
	c := *ep
	c.Versions = append([]domain.EndpointVersion(nil), ep.Versions...)
	return c
}
