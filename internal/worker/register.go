// Package worker registers the evaluation workflow and its activities with
// a Temporal worker and submits evaluations to a Temporal cluster.
package worker

import (
	sdkworker "go.temporal.io/sdk/worker"

	"github.com/ahrav/agentjudge/internal/aggregation"
	"github.com/ahrav/agentjudge/internal/workflow"
)

// RegisterAll registers the workflow and every aggregation activity. Call
// once before starting w.
func RegisterAll(w sdkworker.Registry, acts *aggregation.Activities) {
	w.RegisterWorkflow(workflow.EvaluationWorkflow)
	w.RegisterActivity(acts)
}
