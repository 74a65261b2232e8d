package invoker

import (
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/agentjudge/internal/domain"
)

// Environment variables exchanged with the agent process.
const (
	EnvHostingMarker = "CLAUDECODE"
	EnvParentSpanID  = "TRACE_PARENT_SPAN_ID"
	EnvRootSpanID    = "TRACE_ROOT_SPAN_ID"
	EnvExperimentID  = "TRACE_EXPERIMENT_ID"
	EnvTraceParent   = "TRACEPARENT"
)

// managedVars are always removed from the inherited environment so that stale
// values from an outer process never leak into the child.
var managedVars = []string{
	EnvHostingMarker,
	EnvParentSpanID,
	EnvRootSpanID,
	EnvExperimentID,
	EnvTraceParent,
}

// BuildEnv returns the child environment: parent minus the hosting marker,
// minus strip, plus the correlation variables for tc. Empty trace fields are
// omitted rather than exported as empty strings.
func BuildEnv(parent, strip []string, tc domain.TraceContext) []string {
	drop := make(map[string]struct{}, len(managedVars)+len(strip))
	for _, k := range managedVars {
		drop[k] = struct{}{}
	}
	for _, k := range strip {
		drop[k] = struct{}{}
	}

	env := make([]string, 0, len(parent)+4)
	for _, kv := range parent {
		key, _, _ := strings.Cut(kv, "=")
		if _, ok := drop[key]; ok {
			continue
		}
		env = append(env, kv)
	}

	set := func(k, v string) {
		if v != "" {
			env = append(env, k+"="+v)
		}
	}
	set(EnvParentSpanID, tc.ParentSpanID)
	set(EnvRootSpanID, tc.RootSpanID)
	set(EnvExperimentID, tc.ExperimentID)
	set(EnvTraceParent, traceParent(tc))
	return env
}

// traceParent formats a W3C traceparent header value, or "" when the ids in
// tc are not valid.
func traceParent(tc domain.TraceContext) string {
	tid, err := trace.TraceIDFromHex(tc.TraceID)
	if err != nil {
		return ""
	}
	sid, err := trace.SpanIDFromHex(tc.ParentSpanID)
	if err != nil {
		return ""
	}
	return "00-" + tid.String() + "-" + sid.String() + "-01"
}
