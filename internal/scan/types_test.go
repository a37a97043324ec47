package scan

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobJSONKeysAccumulatedResults(t *testing.T) {
	t.Parallel()

	job := Job{
		ID:      "job-1",
		Results: []FetchResult{{URL: "http://a.test", StatusCode: 200, Found: true}},
	}
	raw, err := json.Marshal(job)
	require.NoError(t, err)

	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.Contains(t, fields, "results")
	assert.NotContains(t, fields, "batch_results")

	var decoded Job
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, job.Results, decoded.Results)
}

func TestAdvanceResponseJSONKeysBatchResults(t *testing.T) {
	t.Parallel()

	raw, err := json.Marshal(respond(Job{ID: "job-1"}, nil))
	require.NoError(t, err)

	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.JSONEq(t, `[]`, string(fields["batch_results"]))
	assert.NotContains(t, fields, "results")
}
