package reconciler

import (
	"github.com/agentstation/registrar/pkg/errors"
)

// options configures a reconciler.
type options struct {
	dryRun   bool
	matchers []Matcher
}

func defaultOptions() *options {
	return &options{
		matchers: DefaultMatchers(),
	}
}

// Option is a function that configures a Reconciler.
type Option func(*options) error

func (o *options) apply(opts ...Option) (*options, error) {
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// newOptions returns reconciler options with default values.
func newOptions(opts ...Option) (*options, error) {
	return defaultOptions().apply(opts...)
}

// WithDryRun performs every read but plans writes instead of issuing them.
func WithDryRun(enabled bool) Option {
	return func(o *options) error {
		o.dryRun = enabled
		return nil
	}
}

// WithMatchers replaces the ordered name predicates used to pick an
// existing resource. The first matcher that accepts a candidate wins.
func WithMatchers(matchers ...Matcher) Option {
	return func(o *options) error {
		if len(matchers) == 0 {
			return &errors.ValidationError{
				Field:   "matchers",
				Message: "at least one matcher is required",
			}
		}
		for _, m := range matchers {
			if m.Match == nil {
				return &errors.ValidationError{
					Field:   "matchers",
					Value:   m.Name,
					Message: "matcher has no predicate",
				}
			}
		}
		o.matchers = matchers
		return nil
	}
}
