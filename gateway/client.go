// Package gateway implements the HTTP client for the remote mapping
// service: the request/response channel carrying rule CRUD, suggestion
// matching, rule synthesis and vocabulary lookups. Every request
// addresses the currently configured {baseUrl, project, transformTask}.
package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/c360studio/mapspec/rules"
)

const defaultTimeout = 30 * time.Second

// CompletionKind selects an autocompletion endpoint.
type CompletionKind string

// Autocompletion endpoints by entity kind.
const (
	CompleteValueTypes       CompletionKind = "valueTypes"
	CompleteTargetProperties CompletionKind = "targetProperties"
	CompleteTargetTypes      CompletionKind = "targetTypes"
	CompleteSourcePaths      CompletionKind = "sourcePaths"
)

// Client talks to the transform-task REST API. Connection details have a
// single writer and many readers; SetDetails may be called while requests
// are in flight, each request snapshots the details once at dispatch.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger

	mu      sync.RWMutex
	details Details
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithTimeout sets the per-request timeout on the underlying HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// NewClient creates a gateway client for the given connection details.
func NewClient(details Details, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     slog.Default(),
		details:    details,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetDetails replaces the connection details. Requests already in flight
// keep the details they were dispatched with.
func (c *Client) SetDetails(d Details) {
	c.mu.Lock()
	c.details = d
	c.mu.Unlock()
	c.logger.Debug("gateway connection details updated",
		"base_url", d.BaseURL, "project", d.Project, "transform_task", d.TransformTask)
}

// Details returns the current connection details.
func (c *Client) Details() Details {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.details
}

// RuleTree fetches the whole mapping rule tree of the transform task.
func (c *Client) RuleTree(ctx context.Context) (*rules.Rule, error) {
	var tree rules.Rule
	if err := c.do(ctx, "rule_tree", http.MethodGet, c.taskPath()+"/rules", nil, nil, &tree); err != nil {
		return nil, err
	}
	return &tree, nil
}

// UpdateRule updates an existing rule and returns the saved rule.
func (c *Client) UpdateRule(ctx context.Context, ruleID string, payload *rules.Rule) (*rules.Rule, error) {
	var saved rules.Rule
	path := c.taskPath() + "/rule/" + url.PathEscape(ruleID)
	if err := c.do(ctx, "rule_update", http.MethodPut, path, nil, payload, &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

// AppendRule appends a new child rule to the given parent and returns the
// created rule including its server-assigned id.
func (c *Client) AppendRule(ctx context.Context, parentID string, payload *rules.Rule) (*rules.Rule, error) {
	var created rules.Rule
	path := c.taskPath() + "/rule/" + url.PathEscape(parentID) + "/rules"
	if err := c.do(ctx, "rule_append", http.MethodPost, path, nil, payload, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// RemoveRule deletes the rule with the given id.
func (c *Client) RemoveRule(ctx context.Context, ruleID string) error {
	path := c.taskPath() + "/rule/" + url.PathEscape(ruleID)
	return c.do(ctx, "rule_delete", http.MethodDelete, path, nil, nil, nil)
}

// CopyRule copies a rule into the task and returns the new rule id. An
// empty RuleID addresses the root rule.
func (c *Client) CopyRule(ctx context.Context, req CopyRequest) (string, error) {
	target := req.RuleID
	if target == "" {
		target = string(rules.TypeRoot)
	}
	query := url.Values{}
	if req.SourceProject != "" {
		query.Set("sourceProject", req.SourceProject)
	}
	if req.SourceTask != "" {
		query.Set("sourceTask", req.SourceTask)
	}
	if req.SourceRule != "" {
		query.Set("sourceRule", req.SourceRule)
	}
	if req.AppendTo != "" {
		query.Set("appendTo", req.AppendTo)
	}

	var resp struct {
		ID string `json:"id"`
	}
	path := c.taskPath() + "/rule/" + url.PathEscape(target) + "/copy"
	if err := c.do(ctx, "rule_copy", http.MethodPost, path, query, nil, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// ReorderRules replaces the child order of an object rule. The children
// list must contain every current child id exactly once.
func (c *Client) ReorderRules(ctx context.Context, ruleID string, children []string) error {
	path := c.taskPath() + "/rule/" + url.PathEscape(ruleID) + "/rules/reorder"
	return c.do(ctx, "rule_reorder", http.MethodPost, path, nil, children, nil)
}

// GenerateRules asks the service to synthesize fully-formed rule
// definitions from the given correspondences. Nothing is persisted by this
// call, the definitions still have to be created individually.
func (c *Client) GenerateRules(ctx context.Context, req GenerateRequest) ([]*rules.Rule, error) {
	var defs []*rules.Rule
	if err := c.do(ctx, "rule_generate", http.MethodPost, c.taskPath()+"/rules/generate", nil, req, &defs); err != nil {
		return nil, err
	}
	return defs, nil
}

// VocabularyInfo looks up generic metadata of a target vocabulary type or
// property.
func (c *Client) VocabularyInfo(ctx context.Context, uri string) (*VocabularyInfo, error) {
	query := url.Values{"uri": []string{uri}}
	var info VocabularyInfo
	path := c.taskPath() + "/targetVocabulary/typeOrProperty"
	if err := c.do(ctx, "vocabulary_info", http.MethodGet, path, query, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// MatchVocabulary runs vocabulary matching for a rule and returns the
// matches in service order. Datasets without matching support answer with
// the endpoint-missing 404 shape, see IsEndpointMissing.
func (c *Client) MatchVocabulary(ctx context.Context, req MatchRequest) ([]VocabularyMatch, error) {
	var resp struct {
		Matches []VocabularyMatch `json:"matches"`
	}
	path := c.taskPath() + "/rule/" + url.PathEscape(req.RuleID) + "/matchVocabularyClassDataset"
	if err := c.do(ctx, "match_vocabulary", http.MethodPost, path, nil, req, &resp); err != nil {
		return nil, err
	}
	return resp.Matches, nil
}

// ValueSourcePaths returns the value source paths of a rule, restricted to
// paths not yet covered by any mapping rule when unusedOnly is set.
func (c *Client) ValueSourcePaths(ctx context.Context, ruleID string, unusedOnly bool) ([]string, error) {
	query := url.Values{}
	if unusedOnly {
		query.Set("unusedOnly", "true")
	}
	var paths []string
	path := c.taskPath() + "/rule/" + url.PathEscape(ruleID) + "/valueSourcePaths"
	if err := c.do(ctx, "value_source_paths", http.MethodGet, path, query, nil, &paths); err != nil {
		return nil, err
	}
	return paths, nil
}

// Completions fetches autocompletion entries of the given kind for a rule.
func (c *Client) Completions(ctx context.Context, kind CompletionKind, ruleID, term string) ([]Completion, error) {
	query := url.Values{"term": []string{term}}
	var options []Completion
	path := c.taskPath() + "/rule/" + url.PathEscape(ruleID) + "/completions/" + string(kind)
	if err := c.do(ctx, "completions_"+string(kind), http.MethodGet, path, query, nil, &options); err != nil {
		return nil, err
	}
	return options, nil
}

// PartialSourcePaths auto-completes a partially typed source path
// expression at a cursor position, scoped to the rule's source paths.
func (c *Client) PartialSourcePaths(ctx context.Context, req PathCompletionRequest) (*PathCompletion, error) {
	var resp PathCompletion
	path := c.taskPath() + "/rule/" + url.PathEscape(req.RuleID) + "/completions/partialSourcePaths"
	if err := c.do(ctx, "partial_source_paths", http.MethodPost, path, nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PeekRule previews the transformation output of an existing rule.
func (c *Client) PeekRule(ctx context.Context, ruleID string) (*PeekResponse, error) {
	var resp PeekResponse
	path := c.taskPath() + "/peak/" + url.PathEscape(ruleID)
	if err := c.do(ctx, "peek_rule", http.MethodPost, path, nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PeekChildRule previews the transformation output of a hypothetical child
// rule of the given parent without persisting it.
func (c *Client) PeekChildRule(ctx context.Context, parentID string, rule *rules.Rule) (*PeekResponse, error) {
	var resp PeekResponse
	path := c.taskPath() + "/peak/" + url.PathEscape(parentID) + "/childRule"
	if err := c.do(ctx, "peek_child_rule", http.MethodPost, path, nil, rule, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ExampleValues fetches schema example values for a rule. The shape
// depends on the source dataset, so the raw body is returned.
func (c *Client) ExampleValues(ctx context.Context, ruleID string) (json.RawMessage, error) {
	var raw json.RawMessage
	path := c.taskPath() + "/rule/" + url.PathEscape(ruleID) + "/exampleValues"
	if err := c.do(ctx, "example_values", http.MethodGet, path, nil, nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// Prefixes lists the namespace prefixes of the project.
func (c *Client) Prefixes(ctx context.Context) (map[string]string, error) {
	d := c.Details()
	var prefixes map[string]string
	path := "/projects/" + url.PathEscape(d.Project) + "/prefixes"
	if err := c.do(ctx, "prefixes", http.MethodGet, path, nil, nil, &prefixes); err != nil {
		return nil, err
	}
	return prefixes, nil
}

// ValidatePath validates a source path expression against the project.
func (c *Client) ValidatePath(ctx context.Context, expression string) (*PathValidation, error) {
	d := c.Details()
	body := map[string]string{"pathExpression": expression}
	var result PathValidation
	path := "/projects/" + url.PathEscape(d.Project) + "/validateSourcePath"
	if err := c.do(ctx, "validate_path", http.MethodPost, path, nil, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// taskPath returns the path prefix addressing the configured transform
// task.
func (c *Client) taskPath() string {
	d := c.Details()
	return "/transform/tasks/" + url.PathEscape(d.Project) + "/" + url.PathEscape(d.TransformTask)
}

// do performs one request against the service. Non-2xx responses are
// decoded into an APIError carrying the status code and the {title,
// detail} body.
func (c *Client) do(ctx context.Context, endpoint, method, path string, query url.Values, body, out any) error {
	details := c.Details()
	if details.BaseURL == "" {
		return ErrNoConnection
	}

	target := details.BaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", endpoint, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	requestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		requestsTotal.WithLabelValues(endpoint, outcomeTransport).Inc()
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		requestsTotal.WithLabelValues(endpoint, outcomeAPIError).Inc()
		apiErr := &APIError{
			Status: resp.StatusCode,
			Title:  http.StatusText(resp.StatusCode),
		}
		if data, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize)); readErr == nil && len(data) > 0 {
			// Keep the default title/detail when the body is not the
			// expected problem shape.
			_ = json.Unmarshal(data, apiErr)
		}
		c.logger.Debug("gateway request failed",
			"endpoint", endpoint, "status", resp.StatusCode, "title", apiErr.Title)
		return apiErr
	}

	requestsTotal.WithLabelValues(endpoint, outcomeOK).Inc()

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}

// maxErrorBodySize bounds how much of an error body is read.
const maxErrorBodySize = 1 << 20
