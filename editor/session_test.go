package editor

import (
	"context"
	"errors"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/mapspec/events"
	"github.com/c360studio/mapspec/gateway"
	"github.com/c360studio/mapspec/rules"
	"github.com/c360studio/mapspec/suggest"
)

// fakeGateway implements Gateway with overridable function fields. Calls
// without an override fail the test.
type fakeGateway struct {
	t *testing.T

	details          gateway.Details
	ruleTree         func(ctx context.Context) (*rules.Rule, error)
	updateRule       func(ctx context.Context, ruleID string, payload *rules.Rule) (*rules.Rule, error)
	appendRule       func(ctx context.Context, parentID string, payload *rules.Rule) (*rules.Rule, error)
	removeRule       func(ctx context.Context, ruleID string) error
	copyRule         func(ctx context.Context, req gateway.CopyRequest) (string, error)
	reorderRules     func(ctx context.Context, ruleID string, children []string) error
	generateRules    func(ctx context.Context, req gateway.GenerateRequest) ([]*rules.Rule, error)
	vocabularyInfo   func(ctx context.Context, uri string) (*gateway.VocabularyInfo, error)
	matchVocabulary  func(ctx context.Context, req gateway.MatchRequest) ([]gateway.VocabularyMatch, error)
	valueSourcePaths func(ctx context.Context, ruleID string, unusedOnly bool) ([]string, error)
	completions      func(ctx context.Context, kind gateway.CompletionKind, ruleID, term string) ([]gateway.Completion, error)
	partialPaths     func(ctx context.Context, req gateway.PathCompletionRequest) (*gateway.PathCompletion, error)
	peekRule         func(ctx context.Context, ruleID string) (*gateway.PeekResponse, error)
	peekChildRule    func(ctx context.Context, parentID string, rule *rules.Rule) (*gateway.PeekResponse, error)
	exampleValues    func(ctx context.Context, ruleID string) (json.RawMessage, error)
	prefixes         func(ctx context.Context) (map[string]string, error)
	validatePath     func(ctx context.Context, expression string) (*gateway.PathValidation, error)
}

func (f *fakeGateway) Details() gateway.Details { return f.details }

func (f *fakeGateway) RuleTree(ctx context.Context) (*rules.Rule, error) {
	if f.ruleTree == nil {
		f.t.Fatal("unexpected RuleTree call")
	}
	return f.ruleTree(ctx)
}

func (f *fakeGateway) UpdateRule(ctx context.Context, ruleID string, payload *rules.Rule) (*rules.Rule, error) {
	if f.updateRule == nil {
		f.t.Fatal("unexpected UpdateRule call")
	}
	return f.updateRule(ctx, ruleID, payload)
}

func (f *fakeGateway) AppendRule(ctx context.Context, parentID string, payload *rules.Rule) (*rules.Rule, error) {
	if f.appendRule == nil {
		f.t.Fatal("unexpected AppendRule call")
	}
	return f.appendRule(ctx, parentID, payload)
}

func (f *fakeGateway) RemoveRule(ctx context.Context, ruleID string) error {
	if f.removeRule == nil {
		f.t.Fatal("unexpected RemoveRule call")
	}
	return f.removeRule(ctx, ruleID)
}

func (f *fakeGateway) CopyRule(ctx context.Context, req gateway.CopyRequest) (string, error) {
	if f.copyRule == nil {
		f.t.Fatal("unexpected CopyRule call")
	}
	return f.copyRule(ctx, req)
}

func (f *fakeGateway) ReorderRules(ctx context.Context, ruleID string, children []string) error {
	if f.reorderRules == nil {
		f.t.Fatal("unexpected ReorderRules call")
	}
	return f.reorderRules(ctx, ruleID, children)
}

func (f *fakeGateway) GenerateRules(ctx context.Context, req gateway.GenerateRequest) ([]*rules.Rule, error) {
	if f.generateRules == nil {
		f.t.Fatal("unexpected GenerateRules call")
	}
	return f.generateRules(ctx, req)
}

func (f *fakeGateway) VocabularyInfo(ctx context.Context, uri string) (*gateway.VocabularyInfo, error) {
	if f.vocabularyInfo == nil {
		f.t.Fatal("unexpected VocabularyInfo call")
	}
	return f.vocabularyInfo(ctx, uri)
}

func (f *fakeGateway) MatchVocabulary(ctx context.Context, req gateway.MatchRequest) ([]gateway.VocabularyMatch, error) {
	if f.matchVocabulary == nil {
		f.t.Fatal("unexpected MatchVocabulary call")
	}
	return f.matchVocabulary(ctx, req)
}

func (f *fakeGateway) ValueSourcePaths(ctx context.Context, ruleID string, unusedOnly bool) ([]string, error) {
	if f.valueSourcePaths == nil {
		f.t.Fatal("unexpected ValueSourcePaths call")
	}
	return f.valueSourcePaths(ctx, ruleID, unusedOnly)
}

func (f *fakeGateway) Completions(ctx context.Context, kind gateway.CompletionKind, ruleID, term string) ([]gateway.Completion, error) {
	if f.completions == nil {
		f.t.Fatal("unexpected Completions call")
	}
	return f.completions(ctx, kind, ruleID, term)
}

func (f *fakeGateway) PartialSourcePaths(ctx context.Context, req gateway.PathCompletionRequest) (*gateway.PathCompletion, error) {
	if f.partialPaths == nil {
		f.t.Fatal("unexpected PartialSourcePaths call")
	}
	return f.partialPaths(ctx, req)
}

func (f *fakeGateway) PeekRule(ctx context.Context, ruleID string) (*gateway.PeekResponse, error) {
	if f.peekRule == nil {
		f.t.Fatal("unexpected PeekRule call")
	}
	return f.peekRule(ctx, ruleID)
}

func (f *fakeGateway) PeekChildRule(ctx context.Context, parentID string, rule *rules.Rule) (*gateway.PeekResponse, error) {
	if f.peekChildRule == nil {
		f.t.Fatal("unexpected PeekChildRule call")
	}
	return f.peekChildRule(ctx, parentID, rule)
}

func (f *fakeGateway) ExampleValues(ctx context.Context, ruleID string) (json.RawMessage, error) {
	if f.exampleValues == nil {
		f.t.Fatal("unexpected ExampleValues call")
	}
	return f.exampleValues(ctx, ruleID)
}

func (f *fakeGateway) Prefixes(ctx context.Context) (map[string]string, error) {
	if f.prefixes == nil {
		f.t.Fatal("unexpected Prefixes call")
	}
	return f.prefixes(ctx)
}

func (f *fakeGateway) ValidatePath(ctx context.Context, expression string) (*gateway.PathValidation, error) {
	if f.validatePath == nil {
		f.t.Fatal("unexpected ValidatePath call")
	}
	return f.validatePath(ctx, expression)
}

func strptr(s string) *string { return &s }

func testTree() *rules.Rule {
	return &rules.Rule{
		ID:   "root",
		Type: rules.TypeRoot,
		Rules: &rules.ChildRules{
			TypeRules: []rules.TypeRule{rules.NewTypeRule("http://xmlns.com/foaf/0.1/Person")},
			PropertyRules: []*rules.Rule{
				{
					ID:   "rule-address",
					Type: rules.TypeObject,
					MappingTarget: &rules.MappingTarget{
						URI:       "http://schema.org/address",
						ValueType: rules.ValueType{NodeType: rules.NodeTypeURI},
					},
					Rules: &rules.ChildRules{
						TypeRules: []rules.TypeRule{rules.NewTypeRule("http://schema.org/PostalAddress")},
						PropertyRules: []*rules.Rule{
							{
								ID:         "rule-city",
								Type:       rules.TypeDirect,
								SourcePath: strptr("/city"),
							},
						},
					},
				},
			},
		},
	}
}

func TestRuleFindsMatch(t *testing.T) {
	gw := &fakeGateway{t: t, ruleTree: func(context.Context) (*rules.Rule, error) {
		return testTree(), nil
	}}
	s := NewSession(gw)

	match, err := s.Rule(context.Background(), "rule-city", false)
	require.NoError(t, err)
	assert.Equal(t, "rule-city", match.Rule.ID)
	assert.Equal(t, 2, match.Depth())
}

func TestRuleObjectContext(t *testing.T) {
	gw := &fakeGateway{t: t, ruleTree: func(context.Context) (*rules.Rule, error) {
		return testTree(), nil
	}}
	s := NewSession(gw)

	match, err := s.Rule(context.Background(), "rule-city", true)
	require.NoError(t, err)
	assert.Equal(t, "rule-address", match.Rule.ID)
}

func TestRuleMissingIDFallsBackToRoot(t *testing.T) {
	gw := &fakeGateway{t: t, ruleTree: func(context.Context) (*rules.Rule, error) {
		return testTree(), nil
	}}
	s := NewSession(gw)

	match, err := s.Rule(context.Background(), "gone", false)
	require.NoError(t, err)
	assert.Equal(t, "root", match.Rule.ID)
	assert.Empty(t, match.Breadcrumbs)
}

func TestRuleEmptyIDAddressesRoot(t *testing.T) {
	gw := &fakeGateway{t: t, ruleTree: func(context.Context) (*rules.Rule, error) {
		return testTree(), nil
	}}
	s := NewSession(gw)

	match, err := s.Rule(context.Background(), "", false)
	require.NoError(t, err)
	assert.Equal(t, "root", match.Rule.ID)
	assert.Equal(t, "root", s.RootID())
}

func TestCreateMappingUpdatesExistingRule(t *testing.T) {
	var updatedID string
	gw := &fakeGateway{t: t, updateRule: func(_ context.Context, ruleID string, payload *rules.Rule) (*rules.Rule, error) {
		updatedID = ruleID
		return payload, nil
	}}
	s := NewSession(gw)

	_, err := s.CreateMapping(context.Background(), rules.Form{
		ID:   "rule-7",
		Type: rules.TypeDirect,
	}, false)
	require.NoError(t, err)
	assert.Equal(t, "rule-7", updatedID)
}

func TestCreateMappingAppendsUnderResolvedRoot(t *testing.T) {
	// Without a parent id the session fetches the tree once to resolve the
	// root before appending.
	var gotParent string
	gw := &fakeGateway{
		t: t,
		ruleTree: func(context.Context) (*rules.Rule, error) {
			return testTree(), nil
		},
		appendRule: func(_ context.Context, parentID string, payload *rules.Rule) (*rules.Rule, error) {
			gotParent = parentID
			created := *payload
			created.ID = "new-1"
			return &created, nil
		},
	}
	s := NewSession(gw)

	created, err := s.CreateMapping(context.Background(), rules.Form{
		Type:           rules.TypeDirect,
		SourceProperty: "/name",
	}, false)
	require.NoError(t, err)
	assert.Equal(t, "root", gotParent)
	assert.Equal(t, "new-1", created.ID)
}

func TestCreateMappingExplicitParent(t *testing.T) {
	var gotParent string
	gw := &fakeGateway{t: t, appendRule: func(_ context.Context, parentID string, payload *rules.Rule) (*rules.Rule, error) {
		gotParent = parentID
		return payload, nil
	}}
	s := NewSession(gw)

	_, err := s.CreateMapping(context.Background(), rules.Form{
		ParentID: "rule-address",
		Type:     rules.TypeDirect,
	}, false)
	require.NoError(t, err)
	assert.Equal(t, "rule-address", gotParent)
}

func TestCreateGeneratedMappingAlwaysAppends(t *testing.T) {
	// Synthesized definitions may carry a label identical to an existing
	// rule; they are still created, never updated.
	var gotParent string
	gw := &fakeGateway{t: t, appendRule: func(_ context.Context, parentID string, payload *rules.Rule) (*rules.Rule, error) {
		gotParent = parentID
		created := *payload
		created.ID = "gen-1"
		return &created, nil
	}}
	s := NewSession(gw)

	created, err := s.CreateGeneratedMapping(context.Background(), &rules.Rule{
		Type:     rules.TypeDirect,
		Metadata: rules.Metadata{Label: "Name"},
	}, "rule-address")
	require.NoError(t, err)
	assert.Equal(t, "rule-address", gotParent)
	assert.Equal(t, "gen-1", created.ID)
}

func TestRemoveRulePublishesReload(t *testing.T) {
	gw := &fakeGateway{t: t, removeRule: func(context.Context, string) error { return nil }}
	bus := events.NewLocalBus()
	var reloads []events.Reload
	bus.Subscribe(events.SubjectReload, func(e events.Event) {
		reloads = append(reloads, e.(events.Reload))
	})
	s := NewSession(gw, WithBus(bus))

	require.NoError(t, s.RemoveRule(context.Background(), "rule-1"))
	assert.Equal(t, []events.Reload{{Full: true}}, reloads)
}

func TestRemoveRuleFailurePublishesNothing(t *testing.T) {
	gw := &fakeGateway{t: t, removeRule: func(context.Context, string) error {
		return errors.New("boom")
	}}
	bus := events.NewLocalBus()
	var published int
	bus.Subscribe(events.SubjectReload, func(events.Event) { published++ })
	s := NewSession(gw, WithBus(bus))

	require.Error(t, s.RemoveRule(context.Background(), "rule-1"))
	assert.Zero(t, published)
}

func TestOrderRulesPublishesReload(t *testing.T) {
	var gotChildren []string
	gw := &fakeGateway{t: t, reorderRules: func(_ context.Context, _ string, children []string) error {
		gotChildren = children
		return nil
	}}
	bus := events.NewLocalBus()
	var reloads []events.Reload
	bus.Subscribe(events.SubjectReload, func(e events.Event) {
		reloads = append(reloads, e.(events.Reload))
	})
	s := NewSession(gw, WithBus(bus))

	require.NoError(t, s.OrderRules(context.Background(), "root", []string{"b", "a"}))
	assert.Equal(t, []string{"b", "a"}, gotChildren)
	assert.Equal(t, []events.Reload{{Full: false}}, reloads)
}

func TestAutocompleteKinds(t *testing.T) {
	tests := []struct {
		entity Entity
		kind   gateway.CompletionKind
	}{
		{EntityPropertyType, gateway.CompleteValueTypes},
		{EntityTargetProperty, gateway.CompleteTargetProperties},
		{EntityTargetEntityType, gateway.CompleteTargetTypes},
		{EntitySourcePath, gateway.CompleteSourcePaths},
	}

	for _, tt := range tests {
		t.Run(string(tt.entity), func(t *testing.T) {
			var gotKind gateway.CompletionKind
			gw := &fakeGateway{t: t, completions: func(_ context.Context, kind gateway.CompletionKind, _, _ string) ([]gateway.Completion, error) {
				gotKind = kind
				return nil, nil
			}}
			s := NewSession(gw)

			_, err := s.Autocomplete(context.Background(), tt.entity, "na", "rule-1")
			require.NoError(t, err)
			assert.Equal(t, tt.kind, gotKind)
		})
	}
}

func TestAutocompleteUnknownEntity(t *testing.T) {
	s := NewSession(&fakeGateway{t: t})

	_, err := s.Autocomplete(context.Background(), Entity("color"), "", "rule-1")
	assert.ErrorIs(t, err, ErrUnknownEntity)
}

func TestSuggestPathCompletion(t *testing.T) {
	var got gateway.PathCompletionRequest
	gw := &fakeGateway{t: t, partialPaths: func(_ context.Context, req gateway.PathCompletionRequest) (*gateway.PathCompletion, error) {
		got = req
		return &gateway.PathCompletion{
			InputString:    req.InputString,
			CursorPosition: req.CursorPosition,
			ReplacementResults: []gateway.ReplacementResult{{
				ReplacementInterval: gateway.ReplacementInterval{From: 8, Length: 2},
				Replacements:        []gateway.Replacement{{Value: "city"}},
			}},
		}, nil
	}}
	s := NewSession(gw)

	completion, err := s.SuggestPathCompletion(context.Background(), "rule-address", "/address/ci", 11)
	require.NoError(t, err)

	assert.Equal(t, "rule-address", got.RuleID)
	assert.Equal(t, "/address/ci", got.InputString)
	assert.Equal(t, 11, got.CursorPosition)
	require.Len(t, completion.ReplacementResults, 1)
	assert.Equal(t, "city", completion.ReplacementResults[0].Replacements[0].Value)
}

func TestSuggestPathCompletionResolvesRoot(t *testing.T) {
	var gotRule string
	gw := &fakeGateway{
		t: t,
		ruleTree: func(context.Context) (*rules.Rule, error) {
			return testTree(), nil
		},
		partialPaths: func(_ context.Context, req gateway.PathCompletionRequest) (*gateway.PathCompletion, error) {
			gotRule = req.RuleID
			return &gateway.PathCompletion{}, nil
		},
	}
	s := NewSession(gw)

	_, err := s.SuggestPathCompletion(context.Background(), "", "/na", 3)
	require.NoError(t, err)
	assert.Equal(t, "root", gotRule)
}

func TestChildPeekBuildsValuePayload(t *testing.T) {
	var peeked *rules.Rule
	gw := &fakeGateway{t: t, peekChildRule: func(_ context.Context, _ string, rule *rules.Rule) (*gateway.PeekResponse, error) {
		peeked = rule
		return &gateway.PeekResponse{Status: gateway.PeekStatus{ID: "success"}}, nil
	}}
	s := NewSession(gw)

	_, err := s.ChildPeek(context.Background(), "root", rules.TypeDirect, rules.Form{
		Type:           rules.TypeDirect,
		SourceProperty: "/name",
	}, nil)
	require.NoError(t, err)
	require.NotNil(t, peeked)
	require.NotNil(t, peeked.SourcePath)
	assert.Equal(t, "/name", *peeked.SourcePath)
}

func TestChildPeekPassesURIRuleThrough(t *testing.T) {
	uriRule := &rules.Rule{ID: "uri-1", Type: rules.TypeURI}
	var peeked *rules.Rule
	gw := &fakeGateway{t: t, peekChildRule: func(_ context.Context, _ string, rule *rules.Rule) (*gateway.PeekResponse, error) {
		peeked = rule
		return &gateway.PeekResponse{Status: gateway.PeekStatus{ID: "success"}}, nil
	}}
	s := NewSession(gw)

	_, err := s.ChildPeek(context.Background(), "root", rules.TypeURI, rules.Form{}, uriRule)
	require.NoError(t, err)
	assert.Same(t, uriRule, peeked)
}

func TestChildPeekUnsupportedType(t *testing.T) {
	s := NewSession(&fakeGateway{t: t})

	_, err := s.ChildPeek(context.Background(), "root", rules.TypeRoot, rules.Form{}, nil)
	assert.ErrorIs(t, err, ErrUnsupportedPeekType)
}

func TestRulePeekFailureStatus(t *testing.T) {
	gw := &fakeGateway{t: t, peekRule: func(context.Context, string) (*gateway.PeekResponse, error) {
		return &gateway.PeekResponse{Status: gateway.PeekStatus{ID: "error", Msg: "no input data"}}, nil
	}}
	s := NewSession(gw)

	_, err := s.RulePeek(context.Background(), "rule-1")
	require.ErrorIs(t, err, ErrPreview)
	assert.Contains(t, err.Error(), "no input data")
}

func TestRulePeekFailureWithoutMessage(t *testing.T) {
	gw := &fakeGateway{t: t, peekRule: func(context.Context, string) (*gateway.PeekResponse, error) {
		return &gateway.PeekResponse{Status: gateway.PeekStatus{ID: "error"}}, nil
	}}
	s := NewSession(gw)

	_, err := s.RulePeek(context.Background(), "rule-1")
	require.ErrorIs(t, err, ErrPreview)
	assert.Contains(t, err.Error(), "No details available")
}

func TestSuggestResolvesRoot(t *testing.T) {
	var gotMatch gateway.MatchRequest
	gw := &fakeGateway{
		t: t,
		ruleTree: func(context.Context) (*rules.Rule, error) {
			return testTree(), nil
		},
		matchVocabulary: func(_ context.Context, req gateway.MatchRequest) ([]gateway.VocabularyMatch, error) {
			gotMatch = req
			return nil, nil
		},
		valueSourcePaths: func(context.Context, string, bool) ([]string, error) {
			return nil, nil
		},
	}
	s := NewSession(gw)

	_, err := s.Suggest(context.Background(), suggest.Request{MatchFromDataset: false})
	require.NoError(t, err)
	assert.Equal(t, "root", gotMatch.RuleID)
}

func TestVocabularyInfoUsesCache(t *testing.T) {
	var calls int
	gw := &fakeGateway{t: t, vocabularyInfo: func(context.Context, string) (*gateway.VocabularyInfo, error) {
		calls++
		return &gateway.VocabularyInfo{GenericInfo: map[string]string{"label": "name"}}, nil
	}}
	s := NewSession(gw)
	ctx := context.Background()

	assert.Equal(t, "name", s.VocabularyInfo(ctx, "http://schema.org/name", "label"))
	assert.Equal(t, "name", s.VocabularyInfo(ctx, "http://schema.org/name", "label"))
	assert.Equal(t, 1, calls)
}

func TestEditorHref(t *testing.T) {
	gw := &fakeGateway{t: t, details: gateway.Details{
		BaseURL:       "http://dm.example.org",
		Project:       "proj",
		TransformTask: "task",
	}}
	s := NewSession(gw)

	assert.Equal(t, "http://dm.example.org/transform/proj/task/editor/rule-1",
		s.EditorHref("rule-1"))
	assert.Equal(t, "", s.EditorHref(""))
}
