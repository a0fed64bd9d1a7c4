package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tair/payment-reconciler/internal/payment/domain"
)

func TestReplayEvent(t *testing.T) {
	event, err := replayEvent("cs_test_1", "completed")
	require.NoError(t, err)
	assert.Equal(t, domain.EventSessionCompleted, event.Type)
	assert.Equal(t, "cs_test_1", event.ReferenceID)
	assert.True(t, strings.HasPrefix(event.ID, "replay_"))

	event, err = replayEvent("cs_test_1", "failed")
	require.NoError(t, err)
	assert.Equal(t, domain.EventSessionAsyncPaymentFailed, event.Type)

	other, err := replayEvent("cs_test_1", "failed")
	require.NoError(t, err)
	assert.NotEqual(t, event.ID, other.ID)
}

func TestReplayEvent_Rejects(t *testing.T) {
	_, err := replayEvent("", "completed")
	assert.Error(t, err)

	_, err = replayEvent("cs_test_1", "succeeded")
	assert.Error(t, err)
}

func TestReplayCmd_RequiresSession(t *testing.T) {
	cmd := replayCmd()
	cmd.SetArgs([]string{"--type", "completed"})
	cmd.SetOut(&strings.Builder{})
	cmd.SetErr(&strings.Builder{})
	assert.Error(t, cmd.Execute())
}
