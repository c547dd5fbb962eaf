package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextStatus(t *testing.T) {
	t.Run("Success - forward progression", func(t *testing.T) {
		assert.Equal(t, StatusSent, NextStatus(StatusPending, StatusSent))
		assert.Equal(t, StatusDelivered, NextStatus(StatusSent, StatusDelivered))
		assert.Equal(t, StatusOpened, NextStatus(StatusDelivered, StatusOpened))
		assert.Equal(t, StatusClicked, NextStatus(StatusOpened, StatusClicked))
		assert.Equal(t, StatusReplied, NextStatus(StatusClicked, StatusReplied))
	})

	t.Run("Success - late low-rank event never regresses", func(t *testing.T) {
		assert.Equal(t, StatusOpened, NextStatus(StatusOpened, StatusSent))
		assert.Equal(t, StatusOpened, NextStatus(StatusOpened, StatusDelivered))
		assert.Equal(t, StatusReplied, NextStatus(StatusReplied, StatusDelivered))
	})

	t.Run("Success - skipping ranks is allowed", func(t *testing.T) {
		// An open webhook can beat the delivered webhook.
		assert.Equal(t, StatusOpened, NextStatus(StatusSent, StatusOpened))
		assert.Equal(t, StatusReplied, NextStatus(StatusPending, StatusReplied))
	})

	t.Run("Success - bounced from pending or sent only", func(t *testing.T) {
		assert.Equal(t, StatusBounced, NextStatus(StatusPending, StatusBounced))
		assert.Equal(t, StatusBounced, NextStatus(StatusSent, StatusBounced))
		assert.Equal(t, StatusOpened, NextStatus(StatusOpened, StatusBounced))
	})

	t.Run("Success - failed from pending only", func(t *testing.T) {
		assert.Equal(t, StatusFailed, NextStatus(StatusPending, StatusFailed))
		assert.Equal(t, StatusSent, NextStatus(StatusSent, StatusFailed))
	})

	t.Run("Success - terminal states are sinks", func(t *testing.T) {
		for _, terminal := range []TouchStatus{StatusReplied, StatusBounced, StatusFailed} {
			for _, next := range []TouchStatus{StatusSent, StatusDelivered, StatusOpened, StatusClicked, StatusReplied} {
				assert.Equal(t, terminal, NextStatus(terminal, next), "terminal %s must ignore %s", terminal, next)
			}
		}
	})
}

func TestNextStatusConvergence(t *testing.T) {
	// Regardless of arrival order, a set of non-terminal events must
	// converge on the maximum-rank status.
	events := []TouchStatus{StatusSent, StatusDelivered, StatusOpened}
	permutations := [][]TouchStatus{
		{events[0], events[1], events[2]},
		{events[0], events[2], events[1]},
		{events[1], events[0], events[2]},
		{events[1], events[2], events[0]},
		{events[2], events[0], events[1]},
		{events[2], events[1], events[0]},
	}

	for _, perm := range permutations {
		status := StatusPending
		for _, ev := range perm {
			status = NextStatus(status, ev)
		}
		assert.Equal(t, StatusOpened, status, "order %v", perm)
	}
}

func TestStatusForEvent(t *testing.T) {
	t.Run("Success - known events map to statuses", func(t *testing.T) {
		for ev, want := range map[string]TouchStatus{
			"sent":      StatusSent,
			"delivered": StatusDelivered,
			"opened":    StatusOpened,
			"open":      StatusOpened,
			"clicked":   StatusClicked,
			"click":     StatusClicked,
			"replied":   StatusReplied,
			"bounced":   StatusBounced,
			"bounce":    StatusBounced,
			"failed":    StatusFailed,
		} {
			got, ok := StatusForEvent(ev)
			assert.True(t, ok)
			assert.Equal(t, want, got)
		}
	})

	t.Run("Error - unknown event type", func(t *testing.T) {
		_, ok := StatusForEvent("unsubscribe")
		assert.False(t, ok)
	})
}
