package mlclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/forecastrun/internal/domain"
)

// --- Request types ---

// PublishEndpointRequest публикует пайплайн как новый endpoint.
type PublishEndpointRequest struct {
	Name        string                    `json:"name"`
	Description string                    `json:"description,omitempty"`
	Pipeline    domain.PipelineDefinition `json:"pipeline"`
}

// PublishPipelineRequest публикует пайплайн без привязки к endpoint.
type PublishPipelineRequest struct {
	Name        string                    `json:"name"`
	Description string                    `json:"description,omitempty"`
	Pipeline    domain.PipelineDefinition `json:"pipeline"`
}

// AddVersionRequest добавляет опубликованный пайплайн в endpoint.
type AddVersionRequest struct {
	PipelineID string `json:"pipeline_id"`
	SetDefault bool   `json:"set_default"`
}

// SubmitRunRequest отправляет run. Задаётся либо EndpointID, либо Pipeline.
type SubmitRunRequest struct {
	EndpointID string                     `json:"endpoint_id,omitempty"`
	Pipeline   *domain.PipelineDefinition `json:"pipeline,omitempty"`
	Parameters map[string]string          `json:"parameters,omitempty"`
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Config задаёт подключение к сервису пайплайнов.
type Config struct {
	BaseURL     string
	Workspace   string
	AccessToken string

	// HTTPClient переопределяет клиент по умолчанию (таймаут 30 секунд).
	HTTPClient *http.Client
}

// Client выполняет запросы к REST API сервиса пайплайнов в рамках одного
// рабочего пространства. Повторов нет: устойчивость обеспечивает сервис.
type Client struct {
	baseURL    string
	workspace  string
	token      string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: 30 * time.Second,
		}
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		workspace:  cfg.Workspace,
		token:      cfg.AccessToken,
		httpClient: httpClient,
	}
}

// Workspace возвращает имя рабочего пространства клиента.
func (c *Client) Workspace() string {
	return c.workspace
}

// --- Workspace ---

// GetWorkspace возвращает описание рабочего пространства.
func (c *Client) GetWorkspace(ctx context.Context) (*domain.Workspace, error) {
	var ws domain.Workspace
	if err := c.get(ctx, "", &ws); err != nil {
		return nil, fmt.Errorf("get workspace %s: %w", c.workspace, err)
	}
	return &ws, nil
}

// GetDefaultDatastore возвращает хранилище по умолчанию.
func (c *Client) GetDefaultDatastore(ctx context.Context) (*domain.Datastore, error) {
	var ds domain.Datastore
	if err := c.get(ctx, "/datastores/default", &ds); err != nil {
		return nil, fmt.Errorf("get default datastore: %w", err)
	}
	return &ds, nil
}

// GetCompute возвращает compute target по имени.
// Отсутствие кластера возвращается как ErrComputeNotFound.
func (c *Client) GetCompute(ctx context.Context, name string) (*domain.ComputeTarget, error) {
	var ct domain.ComputeTarget
	err := c.get(ctx, "/computes/"+url.PathEscape(name), &ct)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrComputeNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("get compute %s: %w", name, err)
	}
	return &ct, nil
}

// --- Endpoints ---

// GetEndpoint возвращает endpoint по имени.
// Отсутствие endpoint возвращается как ErrEndpointNotFound.
func (c *Client) GetEndpoint(ctx context.Context, name string) (*domain.Endpoint, error) {
	var ep domain.Endpoint
	err := c.get(ctx, "/endpoints/"+url.PathEscape(name), &ep)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrEndpointNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("get endpoint %s: %w", name, err)
	}
	return &ep, nil
}

// PublishEndpoint публикует новый endpoint с первой версией пайплайна.
func (c *Client) PublishEndpoint(ctx context.Context, req PublishEndpointRequest) (*domain.Endpoint, error) {
	var ep domain.Endpoint
	if err := c.post(ctx, "/endpoints", req, &ep); err != nil {
		return nil, fmt.Errorf("publish endpoint %s: %w", req.Name, err)
	}
	return &ep, nil
}

// PublishPipeline публикует неизменяемый снимок пайплайна.
func (c *Client) PublishPipeline(ctx context.Context, req PublishPipelineRequest) (*domain.PublishedPipeline, error) {
	var p domain.PublishedPipeline
	if err := c.post(ctx, "/pipelines", req, &p); err != nil {
		return nil, fmt.Errorf("publish pipeline %s: %w", req.Name, err)
	}
	return &p, nil
}

// AddDefaultVersion добавляет пайплайн в endpoint и делает его версией по умолчанию.
func (c *Client) AddDefaultVersion(ctx context.Context, endpointName, pipelineID string) (*domain.Endpoint, error) {
	req := AddVersionRequest{PipelineID: pipelineID, SetDefault: true}
	var ep domain.Endpoint
	if err := c.post(ctx, "/endpoints/"+url.PathEscape(endpointName)+"/versions", req, &ep); err != nil {
		return nil, fmt.Errorf("add version to endpoint %s: %w", endpointName, err)
	}
	return &ep, nil
}

// --- Datasets & environments ---

// PartitionDataset партиционирует табличный файл и регистрирует результат как датасет.
func (c *Client) PartitionDataset(ctx context.Context, req domain.PartitionRequest) (*domain.TabularDataset, error) {
	var ds domain.TabularDataset
	if err := c.post(ctx, "/datasets/partition", req, &ds); err != nil {
		return nil, fmt.Errorf("partition dataset %s: %w", req.SourcePath, err)
	}
	return &ds, nil
}

// RegisterEnvironment регистрирует окружение и возвращает его с присвоенной версией.
func (c *Client) RegisterEnvironment(ctx context.Context, env domain.Environment) (*domain.Environment, error) {
	var registered domain.Environment
	if err := c.post(ctx, "/environments", env, &registered); err != nil {
		return nil, fmt.Errorf("register environment %s: %w", env.Name, err)
	}
	return &registered, nil
}

// --- Runs ---

// SubmitEndpointRun запускает версию по умолчанию endpoint с параметрами.
func (c *Client) SubmitEndpointRun(ctx context.Context, experiment, endpointID string, params map[string]string) (*domain.Run, error) {
	req := SubmitRunRequest{EndpointID: endpointID, Parameters: params}
	return c.submit(ctx, experiment, req)
}

// SubmitPipelineRun запускает неопубликованный пайплайн.
func (c *Client) SubmitPipelineRun(ctx context.Context, experiment string, def domain.PipelineDefinition) (*domain.Run, error) {
	req := SubmitRunRequest{Pipeline: &def}
	return c.submit(ctx, experiment, req)
}

func (c *Client) submit(ctx context.Context, experiment string, req SubmitRunRequest) (*domain.Run, error) {
	var run domain.Run
	if err := c.post(ctx, "/experiments/"+url.PathEscape(experiment)+"/runs", req, &run); err != nil {
		return nil, fmt.Errorf("submit run to %s: %w", experiment, err)
	}
	return &run, nil
}

// GetRun возвращает run по ID.
func (c *Client) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	var run domain.Run
	if err := c.get(ctx, "/runs/"+url.PathEscape(id), &run); err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return &run, nil
}

// CancelRun отменяет run.
func (c *Client) CancelRun(ctx context.Context, id string) (*domain.Run, error) {
	var run domain.Run
	if err := c.post(ctx, "/runs/"+url.PathEscape(id)+"/cancel", nil, &run); err != nil {
		return nil, fmt.Errorf("cancel run %s: %w", id, err)
	}
	return &run, nil
}

// ListRuns возвращает последние runs эксперимента.
func (c *Client) ListRuns(ctx context.Context, experiment string, limit int) ([]domain.Run, error) {
	path := "/experiments/" + url.PathEscape(experiment) + "/runs"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}

	var runs []domain.Run
	if err := c.get(ctx, path, &runs); err != nil {
		return nil, fmt.Errorf("list runs of %s: %w", experiment, err)
	}
	return runs, nil
}

// --- HTTP helpers ---

func (c *Client) get(ctx context.Context, path string, result any) error {
	return c.doData(ctx, http.MethodGet, path, nil, result)
}

func (c *Client) post(ctx context.Context, path string, body any, result any) error {
	return c.doData(ctx, http.MethodPost, path, body, result)
}

func (c *Client) doData(ctx context.Context, method, path string, body any, result any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	endpoint := c.baseURL + "/api/v1/workspaces/" + url.PathEscape(c.workspace) + path
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	return c.httpClient.Do(req)
}

func checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	apiErr := &APIError{StatusCode: resp.StatusCode}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err == nil {
		apiErr.Code = er.Error.Code
		apiErr.Message = er.Error.Message
	}
	return apiErr
}
