package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobStatus_Terminal(t *testing.T) {
	tests := []struct {
		status   JobStatus
		terminal bool
	}{
		{JobStatusQueued, false},
		{JobStatusProcessingBatches, false},
		{JobStatusCompleted, true},
		{JobStatusFailed, true},
		{JobStatusCancelled, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.terminal, tt.status.Terminal())
		})
	}
}

func TestJob_MetaInt(t *testing.T) {
	job := &Job{Metadata: map[string]any{
		"asInt":     42,
		"asInt64":   int64(43),
		"asFloat":   float64(44),
		"asNumber":  json.Number("45"),
		"asString":  "46",
		"badNumber": json.Number("nope"),
	}}

	assert.Equal(t, int64(42), job.MetaInt("asInt"))
	assert.Equal(t, int64(43), job.MetaInt("asInt64"))
	assert.Equal(t, int64(44), job.MetaInt("asFloat"))
	assert.Equal(t, int64(45), job.MetaInt("asNumber"))
	assert.Equal(t, int64(0), job.MetaInt("asString"))
	assert.Equal(t, int64(0), job.MetaInt("badNumber"))
	assert.Equal(t, int64(0), job.MetaInt("missing"))

	var nilMeta Job
	assert.Equal(t, int64(0), nilMeta.MetaInt("anything"))
}

func TestProgressPercent(t *testing.T) {
	tests := []struct {
		name      string
		processed int64
		total     int64
		want      int
		wantOK    bool
	}{
		{"zero total is indeterminate", 10, 0, 0, false},
		{"negative total is indeterminate", 10, -5, 0, false},
		{"halfway", 50, 100, 50, true},
		{"rounds to nearest", 1, 3, 33, true},
		{"rounds up", 2, 3, 67, true},
		{"complete", 100, 100, 100, true},
		{"overshoot clamps to 100", 120, 100, 100, true},
		{"nothing processed", 0, 100, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ProgressPercent(tt.processed, tt.total)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
