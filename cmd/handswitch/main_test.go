package main

import (
	"context"
	"testing"
	"time"
)

func TestStopWhen(t *testing.T) {
	tests := []struct {
		name    string
		trigger func(cancel context.CancelFunc, loopDone, serverFailed chan struct{})
	}{
		{"signal", func(cancel context.CancelFunc, _, _ chan struct{}) { cancel() }},
		{"frame loop exits", func(_ context.CancelFunc, loopDone, _ chan struct{}) { close(loopDone) }},
		{"http server fails", func(_ context.CancelFunc, _, serverFailed chan struct{}) { close(serverFailed) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			loopDone, serverFailed := make(chan struct{}), make(chan struct{})

			stopped := stopWhen(ctx, loopDone, serverFailed)
			select {
			case <-stopped:
				t.Fatal("stopped before any trigger")
			case <-time.After(20 * time.Millisecond):
			}

			tt.trigger(cancel, loopDone, serverFailed)
			select {
			case <-stopped:
			case <-time.After(2 * time.Second):
				t.Fatal("not stopped after trigger")
			}
		})
	}
}

func TestStopWhen_NilLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	serverFailed := make(chan struct{})

	// a never-started App has a nil Done channel
	stopped := stopWhen(ctx, nil, serverFailed)
	close(serverFailed)

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("server failure did not stop the run")
	}
}
