package rules

// Breadcrumb is one path-from-root entry attached to a search result.
// Type carries the ancestor's first declared class URI and Property its
// mapping target URI; both are "" when the ancestor declares none.
type Breadcrumb struct {
	ID       string `json:"id"`
	Type     string `json:"type,omitempty"`
	Property string `json:"property,omitempty"`
}

// Match is a located rule node together with the breadcrumb trail of its
// object-rule ancestors. Breadcrumbs are recomputed on every search and
// never persisted.
type Match struct {
	Rule        *Rule
	Breadcrumbs []Breadcrumb
}

// Depth returns the number of object-rule ancestors above the match.
func (m *Match) Depth() int {
	return len(m.Breadcrumbs)
}

// Find locates the rule with the given id inside the tree by depth-first
// search. A uri rule shares identity scope with its parent object rule, so
// an id matching an object rule's uriRule resolves to that object rule.
//
// When objectContext is set and the match is not itself a root or object
// rule, the nearest enclosing object rule is returned instead, carrying
// that ancestor's breadcrumbs.
//
// Find returns nil when no node matches; callers typically fall back to
// the tree root in that case.
func Find(root *Rule, id string, objectContext bool) *Match {
	return find(root, id, objectContext, nil)
}

func find(curr *Rule, id string, objectContext bool, trail []Breadcrumb) *Match {
	if curr == nil {
		return nil
	}

	if curr.ID == id || (curr.Rules != nil && curr.Rules.URIRule != nil && curr.Rules.URIRule.ID == id) {
		return &Match{Rule: curr, Breadcrumbs: trail}
	}

	if curr.Rules == nil {
		// Leaf value rule, branch exhausted.
		return nil
	}

	crumb := Breadcrumb{
		ID:       curr.ID,
		Type:     curr.PrimaryTypeURI(),
		Property: curr.TargetURI(),
	}
	// Full-slice expression so sibling branches never share backing array.
	next := append(trail[:len(trail):len(trail)], crumb)

	var result *Match
	for _, child := range curr.Rules.PropertyRules {
		if result = find(child, id, objectContext, next); result != nil {
			break
		}
	}

	if objectContext && result != nil && !result.Rule.Type.IsRootOrObject() {
		result = &Match{Rule: curr, Breadcrumbs: trail}
	}

	return result
}
