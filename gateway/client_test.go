package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/mapspec/rules"
)

func testDetails(baseURL string) Details {
	return Details{BaseURL: baseURL, Project: "proj", TransformTask: "task"}
}

func TestRuleTree(t *testing.T) {
	var gotPath, gotRequestID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotRequestID = r.Header.Get("X-Request-ID")
		json.NewEncoder(w).Encode(&rules.Rule{ID: "root", Type: rules.TypeRoot}) //nolint:errcheck
	}))
	defer srv.Close()

	c := NewClient(testDetails(srv.URL))
	tree, err := c.RuleTree(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "root", tree.ID)
	assert.Equal(t, "/transform/tasks/proj/task/rules", gotPath)
	assert.NotEmpty(t, gotRequestID, "every request carries a request id")
}

func TestAppendRuleSendsPayload(t *testing.T) {
	var got rules.Rule
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/transform/tasks/proj/task/rule/parent-1/rules", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		got.ID = "new-1"
		json.NewEncoder(w).Encode(&got) //nolint:errcheck
	}))
	defer srv.Close()

	c := NewClient(testDetails(srv.URL))
	created, err := c.AppendRule(context.Background(), "parent-1", &rules.Rule{
		Type:     rules.TypeDirect,
		Metadata: rules.Metadata{Label: "Name"},
	})
	require.NoError(t, err)

	assert.Equal(t, "new-1", created.ID)
	assert.Equal(t, "Name", got.Metadata.Label)
}

func TestAPIErrorShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{ //nolint:errcheck
			"title":  "Bad Request",
			"detail": "rule validation failed",
		})
	}))
	defer srv.Close()

	c := NewClient(testDetails(srv.URL))
	err := c.RemoveRule(context.Background(), "rule-1")
	require.Error(t, err)

	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "Bad Request", apiErr.Title)
	assert.Equal(t, "rule validation failed", apiErr.Detail)
	assert.False(t, IsEndpointMissing(err))
}

func TestIsEndpointMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{ //nolint:errcheck
			"title":  "Not Found",
			"detail": "Not Found",
		})
	}))
	defer srv.Close()

	c := NewClient(testDetails(srv.URL))
	_, err := c.MatchVocabulary(context.Background(), MatchRequest{RuleID: "root"})
	require.Error(t, err)
	assert.True(t, IsEndpointMissing(err))
}

func TestOrdinaryNotFoundIsNotEndpointMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{ //nolint:errcheck
			"title":  "Not Found",
			"detail": "no rule with id rule-9",
		})
	}))
	defer srv.Close()

	c := NewClient(testDetails(srv.URL))
	err := c.RemoveRule(context.Background(), "rule-9")
	require.Error(t, err)
	assert.False(t, IsEndpointMissing(err))
}

func TestErrorBodyNotJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(testDetails(srv.URL))
	err := c.RemoveRule(context.Background(), "rule-1")
	require.Error(t, err)

	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Equal(t, "Internal Server Error", apiErr.Title, "falls back to the HTTP status text")
}

func TestNoConnectionDetails(t *testing.T) {
	c := NewClient(Details{})
	_, err := c.RuleTree(context.Background())
	assert.ErrorIs(t, err, ErrNoConnection)
}

func TestSetDetailsSwitchesTarget(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		json.NewEncoder(w).Encode(&rules.Rule{ID: "other-root"}) //nolint:errcheck
	}))
	defer srv.Close()

	c := NewClient(Details{})
	c.SetDetails(testDetails(srv.URL))

	tree, err := c.RuleTree(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "other-root", tree.ID)
	assert.Equal(t, 1, hits)
	assert.Equal(t, "proj", c.Details().Project)
}

func TestValueSourcePathsQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("unusedOnly"))
		json.NewEncoder(w).Encode([]string{"/a", "/b"}) //nolint:errcheck
	}))
	defer srv.Close()

	c := NewClient(testDetails(srv.URL))
	paths, err := c.ValueSourcePaths(context.Background(), "root", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"/a", "/b"}, paths)
}

func TestPartialSourcePaths(t *testing.T) {
	var got PathCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/transform/tasks/proj/task/rule/rule-1/completions/partialSourcePaths", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		json.NewEncoder(w).Encode(&PathCompletion{ //nolint:errcheck
			InputString:    got.InputString,
			CursorPosition: got.CursorPosition,
			ReplacementResults: []ReplacementResult{{
				ReplacementInterval: ReplacementInterval{From: 9, Length: 2},
				ExtractedQuery:      "ci",
				Replacements:        []Replacement{{Value: "city", Label: "City"}},
			}},
		})
	}))
	defer srv.Close()

	c := NewClient(testDetails(srv.URL))
	completion, err := c.PartialSourcePaths(context.Background(), PathCompletionRequest{
		RuleID:         "rule-1",
		InputString:    "/address/ci",
		CursorPosition: 11,
	})
	require.NoError(t, err)

	assert.Equal(t, "/address/ci", got.InputString)
	assert.Equal(t, 11, got.CursorPosition)
	require.Len(t, completion.ReplacementResults, 1)
	assert.Equal(t, "city", completion.ReplacementResults[0].Replacements[0].Value)
}

func TestCopyRuleDefaultsToRoot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transform/tasks/proj/task/rule/root/copy", r.URL.Path)
		assert.Equal(t, "rule-5", r.URL.Query().Get("appendTo"))
		json.NewEncoder(w).Encode(map[string]string{"id": "copy-1"}) //nolint:errcheck
	}))
	defer srv.Close()

	c := NewClient(testDetails(srv.URL))
	id, err := c.CopyRule(context.Background(), CopyRequest{AppendTo: "rule-5"})
	require.NoError(t, err)
	assert.Equal(t, "copy-1", id)
}
