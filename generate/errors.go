package generate

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/c360studio/mapspec/rules"
)

// FailedRule pairs a synthesized rule definition with its creation error.
type FailedRule struct {
	Rule *rules.Rule
	Err  error
}

// Error is the aggregate failure of a bulk generation run. Failed holds
// exactly the subset of definitions whose creation failed, in input order;
// rules created by the same run were kept.
type Error struct {
	Failed []FailedRule

	wrapped *multierror.Error
}

func newError(failed []FailedRule) *Error {
	var merr *multierror.Error
	for _, f := range failed {
		merr = multierror.Append(merr, fmt.Errorf("%s: %w", ruleLabel(f.Rule), f.Err))
	}
	return &Error{Failed: failed, wrapped: merr}
}

func (e *Error) Error() string {
	return fmt.Sprintf("could not create %d of the requested rules: %s",
		len(e.Failed), e.wrapped.Error())
}

// Unwrap exposes the per-item errors for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.wrapped.ErrorOrNil()
}

func ruleLabel(r *rules.Rule) string {
	switch {
	case r == nil:
		return "rule"
	case r.Metadata.Label != "":
		return r.Metadata.Label
	case r.TargetURI() != "":
		return r.TargetURI()
	default:
		return "rule"
	}
}
