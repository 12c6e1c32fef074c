package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONHandler_Lines(t *testing.T) {
	buf := &bytes.Buffer{}
	h := NewJSONHandler(buf)
	ctx := context.Background()

	require.NoError(t, h.Progress(ctx, domain.Progress{Status: domain.BatchRunning, Total: 2, Done: 1}))
	require.NoError(t, h.SystemOutput(ctx, "hello"))
	require.NoError(t, h.Finish(ctx, domain.Progress{Status: domain.BatchCompleted, Total: 2, Done: 2}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)

	var msgs []Message
	for _, line := range lines {
		var m Message
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		msgs = append(msgs, m)
	}
	assert.Equal(t, "progress", msgs[0].Type)
	assert.Equal(t, 1, msgs[0].Progress.Done)
	assert.Equal(t, "system", msgs[1].Type)
	assert.Equal(t, "hello", msgs[1].Message)
	assert.Nil(t, msgs[1].Progress)
	assert.Equal(t, "finished", msgs[2].Type)
	assert.Equal(t, domain.BatchCompleted, msgs[2].Progress.Status)
	assert.False(t, msgs[2].Timestamp.IsZero())
}
