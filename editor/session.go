// Package editor is the session facade of the mapping editor core. It
// ties the gateway, the vocabulary cache, the suggestion pipeline, the
// bulk generation orchestrator and the notification bus together behind
// the operations the UI layer drives.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/c360studio/mapspec/events"
	"github.com/c360studio/mapspec/gateway"
	"github.com/c360studio/mapspec/generate"
	"github.com/c360studio/mapspec/rules"
	"github.com/c360studio/mapspec/suggest"
	"github.com/c360studio/mapspec/vocab"
)

// Contract errors of the session. They indicate caller bugs and fail fast
// instead of being swallowed.
var (
	ErrUnknownEntity       = errors.New("no autocompletion defined for entity kind")
	ErrUnsupportedPeekType = errors.New("child preview requires a direct, complex, object, uri or complexUri rule")
	ErrPreview             = errors.New("could not load preview")
)

// Entity is an autocompletable entity kind.
type Entity string

// Autocompletable entity kinds.
const (
	EntityPropertyType     Entity = "propertyType"
	EntityTargetProperty   Entity = "targetProperty"
	EntityTargetEntityType Entity = "targetEntityType"
	EntitySourcePath       Entity = "sourcePath"
)

// Gateway is the remote service surface the session consumes.
type Gateway interface {
	Details() gateway.Details
	RuleTree(ctx context.Context) (*rules.Rule, error)
	UpdateRule(ctx context.Context, ruleID string, payload *rules.Rule) (*rules.Rule, error)
	AppendRule(ctx context.Context, parentID string, payload *rules.Rule) (*rules.Rule, error)
	RemoveRule(ctx context.Context, ruleID string) error
	CopyRule(ctx context.Context, req gateway.CopyRequest) (string, error)
	ReorderRules(ctx context.Context, ruleID string, children []string) error
	GenerateRules(ctx context.Context, req gateway.GenerateRequest) ([]*rules.Rule, error)
	VocabularyInfo(ctx context.Context, uri string) (*gateway.VocabularyInfo, error)
	MatchVocabulary(ctx context.Context, req gateway.MatchRequest) ([]gateway.VocabularyMatch, error)
	ValueSourcePaths(ctx context.Context, ruleID string, unusedOnly bool) ([]string, error)
	Completions(ctx context.Context, kind gateway.CompletionKind, ruleID, term string) ([]gateway.Completion, error)
	PartialSourcePaths(ctx context.Context, req gateway.PathCompletionRequest) (*gateway.PathCompletion, error)
	PeekRule(ctx context.Context, ruleID string) (*gateway.PeekResponse, error)
	PeekChildRule(ctx context.Context, parentID string, rule *rules.Rule) (*gateway.PeekResponse, error)
	ExampleValues(ctx context.Context, ruleID string) (json.RawMessage, error)
	Prefixes(ctx context.Context) (map[string]string, error)
	ValidatePath(ctx context.Context, expression string) (*gateway.PathValidation, error)
}

// Session is one editing session over a transform task.
type Session struct {
	gw       Gateway
	bus      events.Bus
	logger   *slog.Logger
	vocab    *vocab.Cache
	pipeline *suggest.Pipeline
	bulk     *generate.Orchestrator

	concurrency int

	mu     sync.Mutex
	rootID string
}

// Option configures a Session.
type Option func(*Session)

// WithBus sets the notification bus.
func WithBus(bus events.Bus) Option {
	return func(s *Session) { s.bus = bus }
}

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// WithConcurrency overrides the bulk generation concurrency ceiling.
func WithConcurrency(n int) Option {
	return func(s *Session) { s.concurrency = n }
}

// NewSession creates a session over the given gateway.
func NewSession(gw Gateway, opts ...Option) *Session {
	s := &Session{
		gw:     gw,
		bus:    events.NopBus{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.vocab = vocab.New(gw, s.logger)
	s.pipeline = suggest.New(gw, s.logger)
	s.bulk = generate.New(gw,
		generate.WithBus(s.bus),
		generate.WithLogger(s.logger),
		generate.WithConcurrency(s.concurrency))
	return s
}

// rememberRoot memoizes the root rule id from the first fetched tree.
func (s *Session) rememberRoot(tree *rules.Rule) {
	s.mu.Lock()
	if s.rootID == "" && tree != nil {
		s.rootID = tree.ID
	}
	s.mu.Unlock()
}

// RootID returns the memoized root rule id, "" before the first tree
// fetch.
func (s *Session) RootID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rootID
}

// ensureRoot returns the memoized root rule id, fetching the tree once
// when no tree was loaded yet.
func (s *Session) ensureRoot(ctx context.Context) (string, error) {
	if id := s.RootID(); id != "" {
		return id, nil
	}
	if _, err := s.Hierarchy(ctx); err != nil {
		return "", fmt.Errorf("resolve root rule: %w", err)
	}
	return s.RootID(), nil
}

func (s *Session) parentOrRoot(ctx context.Context, parentID string) (string, error) {
	if parentID != "" {
		return parentID, nil
	}
	return s.ensureRoot(ctx)
}

// Hierarchy fetches the whole mapping rule tree.
func (s *Session) Hierarchy(ctx context.Context) (*rules.Rule, error) {
	tree, err := s.gw.RuleTree(ctx)
	if err != nil {
		return nil, err
	}
	s.rememberRoot(tree)
	return tree, nil
}

// Rule fetches the tree and locates the rule with the given id, breadcrumb
// trail included. An empty id addresses the root. When objectContext is
// set, a matching leaf resolves to its nearest enclosing object rule. A
// missing id falls back to the whole tree root rather than failing.
func (s *Session) Rule(ctx context.Context, id string, objectContext bool) (*rules.Match, error) {
	tree, err := s.Hierarchy(ctx)
	if err != nil {
		return nil, err
	}

	searchID := id
	if searchID == "" {
		searchID = tree.ID
	}

	if match := rules.Find(tree, searchID, objectContext); match != nil {
		return match, nil
	}
	return &rules.Match{Rule: tree}, nil
}

// CreateMapping builds the payload from the form and either updates the
// existing rule (form carries an id) or appends a new rule under the
// form's parent, defaulting to the root.
func (s *Session) CreateMapping(ctx context.Context, form rules.Form, isObject bool) (*rules.Rule, error) {
	var payload *rules.Rule
	if isObject {
		payload = rules.ObjectMappingPayload(form)
	} else {
		payload = rules.ValueMappingPayload(form)
	}

	if form.ID != "" {
		return s.gw.UpdateRule(ctx, form.ID, payload)
	}
	parent, err := s.parentOrRoot(ctx, form.ParentID)
	if err != nil {
		return nil, err
	}
	return s.gw.AppendRule(ctx, parent, payload)
}

// UpdateObjectMapping submits an already-shaped rule payload, updating
// when it carries an id and appending under the parent otherwise.
func (s *Session) UpdateObjectMapping(ctx context.Context, payload *rules.Rule, parentID string) (*rules.Rule, error) {
	if payload.ID != "" {
		return s.gw.UpdateRule(ctx, payload.ID, payload)
	}
	parent, err := s.parentOrRoot(ctx, parentID)
	if err != nil {
		return nil, err
	}
	return s.gw.AppendRule(ctx, parent, payload)
}

// CreateGeneratedMapping persists one synthesized rule definition under
// the given parent, always as a new rule. The parent defaults to the
// memoized root.
func (s *Session) CreateGeneratedMapping(ctx context.Context, definition *rules.Rule, parentID string) (*rules.Rule, error) {
	parent, err := s.parentOrRoot(ctx, parentID)
	if err != nil {
		return nil, err
	}
	return s.gw.AppendRule(ctx, parent, definition)
}

// RemoveRule deletes a rule and publishes a full reload on success.
func (s *Session) RemoveRule(ctx context.Context, id string) error {
	if err := s.gw.RemoveRule(ctx, id); err != nil {
		return err
	}
	s.bus.Publish(events.Reload{Full: true})
	return nil
}

// OrderRules reorders the children of an object rule and publishes a
// reload on success.
func (s *Session) OrderRules(ctx context.Context, id string, children []string) error {
	if err := s.gw.ReorderRules(ctx, id, children); err != nil {
		return err
	}
	s.bus.Publish(events.Reload{})
	return nil
}

// CopyRule copies a rule into the task and returns the new rule id.
func (s *Session) CopyRule(ctx context.Context, req gateway.CopyRequest) (string, error) {
	return s.gw.CopyRule(ctx, req)
}

// Autocomplete fetches completion options for the given entity kind. An
// unknown kind is a contract error. The rule id defaults to the memoized
// root.
func (s *Session) Autocomplete(ctx context.Context, entity Entity, term, ruleID string) ([]gateway.Completion, error) {
	var kind gateway.CompletionKind
	switch entity {
	case EntityPropertyType:
		kind = gateway.CompleteValueTypes
	case EntityTargetProperty:
		kind = gateway.CompleteTargetProperties
	case EntityTargetEntityType:
		kind = gateway.CompleteTargetTypes
	case EntitySourcePath:
		kind = gateway.CompleteSourcePaths
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntity, entity)
	}

	if ruleID == "" {
		root, err := s.ensureRoot(ctx)
		if err != nil {
			return nil, err
		}
		ruleID = root
	}
	return s.gw.Completions(ctx, kind, ruleID, term)
}

// SuggestPathCompletion auto-completes a partially typed source path
// expression at the given cursor position. The rule id defaults to the
// memoized root.
func (s *Session) SuggestPathCompletion(ctx context.Context, ruleID, input string, cursor int) (*gateway.PathCompletion, error) {
	if ruleID == "" {
		root, err := s.ensureRoot(ctx)
		if err != nil {
			return nil, err
		}
		ruleID = root
	}
	return s.gw.PartialSourcePaths(ctx, gateway.PathCompletionRequest{
		RuleID:         ruleID,
		InputString:    input,
		CursorPosition: cursor,
	})
}

// RulePeek previews the transformation output of an existing rule. A
// non-success preview status is surfaced as an ErrPreview error carrying
// the service's message.
func (s *Session) RulePeek(ctx context.Context, id string) (*gateway.PeekResponse, error) {
	resp, err := s.gw.PeekRule(ctx, id)
	if err != nil {
		return nil, err
	}
	return checkPreview(resp)
}

// ChildPeek previews a hypothetical child rule of the given parent. For
// direct, complex and object types the peek rule is built from the form;
// uri and complexUri rules are passed through unchanged. Any other type is
// a contract error.
func (s *Session) ChildPeek(ctx context.Context, parentID string, ruleType rules.Type, form rules.Form, uriRule *rules.Rule) (*gateway.PeekResponse, error) {
	var peekRule *rules.Rule
	switch ruleType {
	case rules.TypeDirect, rules.TypeComplex:
		peekRule = rules.ValueMappingPayload(form)
	case rules.TypeObject:
		peekRule = rules.ObjectMappingPayload(form)
	case rules.TypeURI, rules.TypeComplexURI:
		peekRule = uriRule
	default:
		return nil, fmt.Errorf("%w, got %q", ErrUnsupportedPeekType, ruleType)
	}

	resp, err := s.gw.PeekChildRule(ctx, parentID, peekRule)
	if err != nil {
		return nil, err
	}
	return checkPreview(resp)
}

func checkPreview(resp *gateway.PeekResponse) (*gateway.PeekResponse, error) {
	if resp.Success() {
		return resp, nil
	}
	detail := resp.Status.Msg
	if detail == "" {
		detail = "No details available"
	}
	return nil, fmt.Errorf("%w: %s", ErrPreview, detail)
}

// SchemaExampleValues fetches schema example values for a rule.
func (s *Session) SchemaExampleValues(ctx context.Context, ruleID string) (json.RawMessage, error) {
	return s.gw.ExampleValues(ctx, ruleID)
}

// Prefixes lists the project's namespace prefixes.
func (s *Session) Prefixes(ctx context.Context) (map[string]string, error) {
	return s.gw.Prefixes(ctx)
}

// ValidatePath validates a source path expression.
func (s *Session) ValidatePath(ctx context.Context, expression string) (*gateway.PathValidation, error) {
	return s.gw.ValidatePath(ctx, expression)
}

// VocabularyInfo returns the cached metadata field of a vocabulary term,
// fetching it once on first use.
func (s *Session) VocabularyInfo(ctx context.Context, uri, field string) string {
	return s.vocab.Info(ctx, uri, field)
}

// Suggest runs the suggestion matching pipeline. The rule id defaults to
// the memoized root.
func (s *Session) Suggest(ctx context.Context, req suggest.Request) (*suggest.Result, error) {
	if req.RuleID == "" {
		root, err := s.ensureRoot(ctx)
		if err != nil {
			return nil, err
		}
		req.RuleID = root
	}
	return s.pipeline.Suggest(ctx, req)
}

// GenerateRules turns accepted correspondences into persisted rules under
// the given parent, defaulting to the memoized root. See generate.Generate
// for the partial-failure contract.
func (s *Session) GenerateRules(ctx context.Context, correspondences []gateway.Correspondence, parentID, uriPrefix string) ([]string, error) {
	parent, err := s.parentOrRoot(ctx, parentID)
	if err != nil {
		return nil, err
	}
	return s.bulk.Generate(ctx, correspondences, parent, uriPrefix)
}

// EditorHref returns the transform editor URL of a rule, "" when no rule
// id is given.
func (s *Session) EditorHref(ruleID string) string {
	if ruleID == "" {
		return ""
	}
	d := s.gw.Details()
	return fmt.Sprintf("%s/transform/%s/%s/editor/%s", d.BaseURL, d.Project, d.TransformTask, ruleID)
}
