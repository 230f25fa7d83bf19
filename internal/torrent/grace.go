package torrent

import (
	"context"
	"time"
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration)

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// graceClient waits a fixed delay after every state-changing call. The
// clients offer no notification when a state change has been applied.
type graceClient struct {
	Client
	delay time.Duration
	sleep SleepFunc
}

// WithGraceDelay wraps c so every Pause, Resume and Remove is followed by delay.
// A zero delay returns c unchanged.
func WithGraceDelay(c Client, delay time.Duration) Client {
	return WithGraceSleep(c, delay, sleepCtx)
}

// WithGraceSleep is WithGraceDelay with a custom sleep function.
func WithGraceSleep(c Client, delay time.Duration, sleep SleepFunc) Client {
	if delay <= 0 {
		return c
	}
	return &graceClient{Client: c, delay: delay, sleep: sleep}
}

func (g *graceClient) Pause(ctx context.Context, h Handle) error {
	defer g.sleep(ctx, g.delay)
	return g.Client.Pause(ctx, h)
}

func (g *graceClient) Resume(ctx context.Context, h Handle) error {
	defer g.sleep(ctx, g.delay)
	return g.Client.Resume(ctx, h)
}

func (g *graceClient) Remove(ctx context.Context, h Handle, deleteData bool) error {
	defer g.sleep(ctx, g.delay)
	return g.Client.Remove(ctx, h, deleteData)
}
