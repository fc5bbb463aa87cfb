// Package suggest implements the mapping suggestion pipeline: two
// independent remote matching requests whose results are merged into one
// candidate list, with partial failures downgraded to warnings. Partial
// suggestion data is deliberately treated as more useful than none.
package suggest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/c360studio/mapspec/gateway"
)

// DefaultNrCandidates is the candidate limit per source item when the
// request does not specify one.
const DefaultNrCandidates = 1

// ErrAllBranchesFailed is returned when both matching branches failed with
// unrecoverable errors and no suggestions could be produced.
var ErrAllBranchesFailed = errors.New("all suggestion sources failed")

// Matcher is the gateway subset the pipeline consumes.
type Matcher interface {
	MatchVocabulary(ctx context.Context, req gateway.MatchRequest) ([]gateway.VocabularyMatch, error)
	ValueSourcePaths(ctx context.Context, ruleID string, unusedOnly bool) ([]string, error)
}

// Request parametrizes one suggestion run.
type Request struct {
	// RuleID is the root or object rule the suggestions are for.
	RuleID string
	// TargetClassURIs restricts matching to the given target classes.
	TargetClassURIs []string
	// MatchFromDataset matches from the source view instead of the
	// vocabulary view. Only dataset-driven matching appends uncovered
	// source paths as empty-candidate suggestions.
	MatchFromDataset bool
	// NrCandidates caps the candidates per source item, default 1.
	NrCandidates int
	// TargetVocabularies optionally restricts the matched vocabularies.
	TargetVocabularies []string
	// SkipVocabularyMatching disables the vocabulary matching branch;
	// it then yields an empty result without a remote call.
	SkipVocabularyMatching bool
	// IgnorePaths holds doublestar globs; unused source paths matching
	// any of them are dropped before merging.
	IgnorePaths []string
}

// Suggestion is one proposed source-to-target pairing, not yet accepted.
// An empty candidate list means "no target found yet, but still mappable".
type Suggestion struct {
	URI         string              `json:"uri"`
	Candidates  []gateway.Candidate `json:"candidates"`
	Label       string              `json:"label,omitempty"`
	Description string              `json:"description,omitempty"`
	Graph       string              `json:"graph,omitempty"`
}

// Warning captures a non-fatal branch failure.
type Warning struct {
	Code   int    `json:"code,omitempty"`
	Title  string `json:"title"`
	Detail string `json:"detail,omitempty"`
}

func (w Warning) String() string {
	if w.Detail == "" {
		return w.Title
	}
	return w.Title + ": " + w.Detail
}

// Result is the merged suggestion list plus the warnings collected from
// failing branches. Vocabulary matches come first in service order,
// followed by uncovered source paths.
type Result struct {
	Suggestions []Suggestion `json:"suggestions"`
	Warnings    []Warning    `json:"warnings,omitempty"`
}

// Pipeline issues the two matching branches and merges their results.
type Pipeline struct {
	matcher Matcher
	logger  *slog.Logger
}

// New creates a pipeline over the given matcher.
func New(matcher Matcher, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{matcher: matcher, logger: logger}
}

// branchResult carries one branch's outcome: either data or a warning.
type branchResult[T any] struct {
	data    T
	warning *Warning
	failed  bool
}

// Suggest runs vocabulary matching and the unused-source-path lookup
// concurrently and joins them. A branch failing (including the soft
// endpoint-missing 404) contributes a warning instead of failing the run;
// only when every executed branch fails is an error returned.
func (p *Pipeline) Suggest(ctx context.Context, req Request) (*Result, error) {
	if err := validateIgnorePatterns(req.IgnorePaths); err != nil {
		return nil, err
	}
	if req.NrCandidates <= 0 {
		req.NrCandidates = DefaultNrCandidates
	}

	var (
		wg      sync.WaitGroup
		matches branchResult[[]gateway.VocabularyMatch]
		paths   branchResult[[]string]
	)

	if !req.SkipVocabularyMatching {
		wg.Add(1)
		go func() {
			defer wg.Done()
			matches = p.matchVocabulary(ctx, req)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		paths = p.valueSourcePaths(ctx, req)
	}()

	wg.Wait()

	if matches.failed && paths.failed {
		return nil, fmt.Errorf("%w: %s; %s", ErrAllBranchesFailed, matches.warning, paths.warning)
	}

	result := &Result{Suggestions: []Suggestion{}}
	for _, w := range []*Warning{matches.warning, paths.warning} {
		if w != nil {
			result.Warnings = append(result.Warnings, *w)
		}
	}

	seen := make(map[string]struct{}, len(matches.data))
	for _, match := range matches.data {
		if _, dup := seen[match.URI]; dup {
			continue
		}
		seen[match.URI] = struct{}{}
		candidates := match.Candidates
		if candidates == nil {
			candidates = []gateway.Candidate{}
		}
		result.Suggestions = append(result.Suggestions, Suggestion{
			URI:         match.URI,
			Candidates:  candidates,
			Label:       match.Label,
			Description: match.Description,
			Graph:       match.Graph,
		})
	}

	if req.MatchFromDataset {
		for _, sourcePath := range paths.data {
			if _, exists := seen[sourcePath]; exists {
				continue
			}
			if ignored(sourcePath, req.IgnorePaths) {
				continue
			}
			seen[sourcePath] = struct{}{}
			result.Suggestions = append(result.Suggestions, Suggestion{
				URI:        sourcePath,
				Candidates: []gateway.Candidate{},
			})
		}
	}

	return result, nil
}

func (p *Pipeline) matchVocabulary(ctx context.Context, req Request) branchResult[[]gateway.VocabularyMatch] {
	matches, err := p.matcher.MatchVocabulary(ctx, gateway.MatchRequest{
		RuleID:             req.RuleID,
		TargetClassURIs:    req.TargetClassURIs,
		MatchFromDataset:   req.MatchFromDataset,
		NrCandidates:       req.NrCandidates,
		TargetVocabularies: req.TargetVocabularies,
	})
	if err != nil {
		p.logger.Debug("suggestion branch failed", "branch", "vocabulary matching", "error", err)
		return toWarning[[]gateway.VocabularyMatch](err)
	}
	return branchResult[[]gateway.VocabularyMatch]{data: matches}
}

func (p *Pipeline) valueSourcePaths(ctx context.Context, req Request) branchResult[[]string] {
	paths, err := p.matcher.ValueSourcePaths(ctx, req.RuleID, true)
	if err != nil {
		p.logger.Debug("suggestion branch failed", "branch", "value source paths", "error", err)
		return toWarning[[]string](err)
	}
	return branchResult[[]string]{data: paths}
}

// toWarning converts a branch error into a warning result. The endpoint
// may legitimately be missing for the current dataset type; that shape is
// still surfaced as a warning so the caller can tell the branch yielded
// nothing.
func toWarning[T any](err error) branchResult[T] {
	w := Warning{Title: err.Error()}
	if apiErr, ok := gateway.AsAPIError(err); ok {
		w = Warning{Code: apiErr.Status, Title: apiErr.Title, Detail: apiErr.Detail}
	}
	return branchResult[T]{warning: &w, failed: true}
}

func validateIgnorePatterns(patterns []string) error {
	for _, pattern := range patterns {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid ignore pattern %q: %w", pattern, doublestar.ErrBadPattern)
		}
	}
	return nil
}

func ignored(path string, patterns []string) bool {
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, path); ok {
			return true
		}
	}
	return false
}
