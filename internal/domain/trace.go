package domain

// TraceContext carries the correlation identifiers a child process needs to
// attach its own spans beneath the harness span that launched it.
//
// It is a value object: derived once per invocation from the ambient span,
// passed by value, never stored in package-level state.
type TraceContext struct {
	// ParentSpanID is the span the child's root span should hang under.
	ParentSpanID string `json:"parent_span_id,omitempty"`

	// RootSpanID is the id of the run's root span.
	RootSpanID string `json:"root_span_id,omitempty"`

	// ExperimentID identifies the owning experiment; empty for standalone runs.
	ExperimentID string `json:"experiment_id,omitempty"`

	// TraceID is the W3C trace id shared by every span in the run.
	TraceID string `json:"trace_id,omitempty"`
}

// IsZero reports whether no correlation data is present.
func (tc TraceContext) IsZero() bool {
	return tc == TraceContext{}
}
