package worker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/agentjudge/internal/workflow"
)

func TestOptionsQueue(t *testing.T) {
	assert.Equal(t, DefaultTaskQueue, Options{}.queue())
	assert.Equal(t, "evals", Options{TaskQueue: "evals"}.queue())
}

func TestSubmitRequiresClient(t *testing.T) {
	rep, err := Submit(context.Background(), nil, Options{}, workflow.EvaluationInput{})
	require.Error(t, err)
	assert.Nil(t, rep)
}
