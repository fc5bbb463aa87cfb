package gateway

// Details identifies the transform task every request addresses.
type Details struct {
	BaseURL       string
	Project       string
	TransformTask string
}

// Complete reports whether all connection fields are set.
func (d Details) Complete() bool {
	return d.BaseURL != "" && d.Project != "" && d.TransformTask != ""
}

// Candidate is one confidence-ranked target candidate of a vocabulary
// match. Candidates arrive ordered by descending confidence.
type Candidate struct {
	URI        string  `json:"uri"`
	Type       string  `json:"type,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Label      string  `json:"label,omitempty"`
}

// VocabularyMatch is one source-side entry of a vocabulary matching
// response, pairing a source URI or path with its candidate list.
type VocabularyMatch struct {
	URI         string      `json:"uri"`
	Label       string      `json:"label,omitempty"`
	Description string      `json:"description,omitempty"`
	Graph       string      `json:"graph,omitempty"`
	Candidates  []Candidate `json:"candidates"`
}

// MatchRequest parametrizes a vocabulary matching call.
type MatchRequest struct {
	// RuleID is the (root or object) rule the matching is done for.
	RuleID string `json:"-"`
	// TargetClassURIs restricts matching to the given target classes.
	TargetClassURIs []string `json:"targetClassUris,omitempty"`
	// MatchFromDataset matches from the source view instead of the
	// vocabulary view.
	MatchFromDataset bool `json:"matchFromDataset"`
	// NrCandidates is the maximum number of candidates per source item.
	NrCandidates int `json:"nrCandidates"`
	// TargetVocabularies optionally restricts the vocabularies to match
	// against.
	TargetVocabularies []string `json:"targetVocabularies,omitempty"`
}

// Correspondence is a user-accepted source-to-target pairing awaiting rule
// synthesis.
type Correspondence struct {
	SourcePath     string `json:"sourcePath"`
	TargetProperty string `json:"targetProperty"`
	Type           string `json:"type"`
}

// GenerateRequest parametrizes a rule synthesis call.
type GenerateRequest struct {
	Correspondences []Correspondence `json:"correspondences"`
	ParentID        string           `json:"parentId,omitempty"`
	URIPrefix       string           `json:"uriPrefix,omitempty"`
}

// CopyRequest parametrizes a rule copy call. RuleID falls back to the root
// rule when empty; AppendTo names the rule the copy is appended to.
type CopyRequest struct {
	RuleID        string
	AppendTo      string
	SourceProject string
	SourceTask    string
	SourceRule    string
}

// VocabularyInfo is the generic metadata the service returns for one
// vocabulary type or property.
type VocabularyInfo struct {
	GenericInfo map[string]string `json:"genericInfo"`
}

// Completion is one autocompletion entry.
type Completion struct {
	Value       string `json:"value"`
	Label       string `json:"label,omitempty"`
	Description string `json:"description,omitempty"`
}

// PeekStatus is the status block of a peek (transformation preview)
// response.
type PeekStatus struct {
	ID  string `json:"id"`
	Msg string `json:"msg"`
}

// PeekResponse is the raw result of a peek request. Success reports
// whether example values could be produced; on failure Status.Msg carries
// the reason.
type PeekResponse struct {
	Status      PeekStatus   `json:"status"`
	SourcePaths [][]string   `json:"sourcePaths,omitempty"`
	Results     []PeekResult `json:"results,omitempty"`
}

// Success reports whether the preview was produced.
func (p *PeekResponse) Success() bool {
	return p != nil && p.Status.ID == "success"
}

// PeekResult is one example row of a peek response.
type PeekResult struct {
	SourceValues      [][]string `json:"sourceValues,omitempty"`
	TransformedValues []string   `json:"transformedValues,omitempty"`
}

// PathCompletionRequest parametrizes a cursor-position auto-completion
// call for a partially typed source path expression.
type PathCompletionRequest struct {
	// RuleID scopes the completion to a rule's source paths.
	RuleID string `json:"-"`
	// InputString is the partial path expression being edited.
	InputString string `json:"inputString"`
	// CursorPosition is the caret offset within InputString.
	CursorPosition int `json:"cursorPosition"`
	// MaxSuggestions caps the replacements per result, service default
	// when zero.
	MaxSuggestions int `json:"maxSuggestions,omitempty"`
}

// ReplacementInterval is the substring of the input a replacement applies
// to.
type ReplacementInterval struct {
	From   int `json:"from"`
	Length int `json:"length"`
}

// Replacement is one completion option for a replacement interval.
type Replacement struct {
	Value       string `json:"value"`
	Label       string `json:"label,omitempty"`
	Description string `json:"description,omitempty"`
}

// ReplacementResult groups the replacement options of one interval of the
// input expression.
type ReplacementResult struct {
	ReplacementInterval ReplacementInterval `json:"replacementInterval"`
	ExtractedQuery      string              `json:"extractedQuery"`
	Replacements        []Replacement       `json:"replacements"`
}

// PathCompletion is the auto-completion response for a partial source
// path expression.
type PathCompletion struct {
	InputString        string              `json:"inputString"`
	CursorPosition     int                 `json:"cursorPosition"`
	ReplacementResults []ReplacementResult `json:"replacementResults"`
}

// PathValidation is the result of validating a source path expression.
type PathValidation struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
	// Offset of the parse error within the expression, when invalid.
	ErrorOffset int `json:"errorOffset,omitempty"`
}
