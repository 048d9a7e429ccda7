package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestControllerStartStop(t *testing.T) {
	cfg := testConfig(t)
	orch := testOrchestrator(t, cfg, &fakeMail{}, newFakeBook("Contas MVA 2025"))
	controller := NewController(orch, 50*time.Millisecond)

	assert.False(t, controller.Running())
	assert.True(t, controller.Start(context.Background()))
	assert.True(t, controller.Running())

	// Starting while running is a no-op.
	assert.False(t, controller.Start(context.Background()))

	assert.True(t, controller.Stop())
	assert.False(t, controller.Running())
	assert.False(t, controller.Stop())
}

func TestRunSurvivesCycleErrors(t *testing.T) {
	cfg := testConfig(t)
	mail := &fakeMail{searchErr: assert.AnError}
	orch := testOrchestrator(t, cfg, mail, newFakeBook("Contas MVA 2025"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		orch.Run(ctx, 10*time.Millisecond)
		close(done)
	}()

	// Let a few failing cycles go by, then stop.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not stop after cancellation")
	}
}
