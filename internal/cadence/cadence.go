// Package cadence implements the fixed-cadence PCM frame emitter: a
// per-connection metronome that releases exactly one frame every
// FrameDuration, substituting silence on underrun so a Sonos renderer
// treating the HTTP body as a continuous file never starves.
//
// Grounded on original_source packages/thaumic-core/src/api/stream.rs's
// create_wav_stream_with_cadence call site (prefill handling, queue sizing,
// epoch-commit-on-first-real-frame) and protocol_constants.rs (frame
// duration bounds, MAX_CADENCE_QUEUE_SIZE derivation). The Rust original
// builds this as a single combinator chain over an async Stream; Go has no
// direct equivalent, so it is reimplemented as a goroutine feeding a channel,
// the idiomatic shape for the teacher's own broadcastWriter loop.
package cadence

import (
	"context"
	"time"
)

// Clock abstracts wall-clock access so tests can drive the emitter with a
// fake clock instead of real ticks.
type Clock interface {
	Now() time.Time
	// NewTimer returns a channel that fires at the given absolute instant,
	// and a stop function. Mirrors time.Timer's Reset-to-deadline usage.
	NewTimer(deadline time.Time) (<-chan time.Time, func() bool)
}

// realClock is the production Clock, backed by time.Timer.
type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) NewTimer(deadline time.Time) (<-chan time.Time, func() bool) {
	t := time.NewTimer(time.Until(deadline))
	return t.C, t.Stop
}

// RealClock is the production Clock implementation.
var RealClock Clock = realClock{}

// Source supplies the raw frames a cadence run multiplexes. Frames and Lag
// mirror the stream package's broadcast hub without importing it, keeping
// cadence independently testable.
type Source struct {
	// Prefill is emitted first, in order, before the live channel is read.
	Prefill [][]byte
	// Live yields frames as they're published; a nil slice on this channel
	// is never sent by the registry, only by test fakes.
	Live <-chan Frame
}

// Frame is one item off the live channel: either audio data, or a lag
// report when the subscriber fell behind the broadcast hub.
type Frame struct {
	Data   []byte
	Lagged int
}

// Hooks are callbacks invoked at specific lifecycle points; all are
// optional (nil-checked before calling).
type Hooks struct {
	// OnFirstRealFrame fires exactly once, when the first non-silence frame
	// is about to be emitted. Used to commit the resume-detection epoch.
	OnFirstRealFrame func()
	// OnLagged fires whenever the source reports a dropped-frame count.
	OnLagged func(n int)
	// OnUnderrun fires whenever the queue was empty at a tick and silence
	// was substituted.
	OnUnderrun func()
}

// Config parameterizes one cadence run.
type Config struct {
	FrameDuration time.Duration
	SilenceFrame  []byte
	QueueSize     int
	Clock         Clock
}

// Run drives the metronome: it pulls from src.Live into an internal bounded
// queue (depth Config.QueueSize) via a feeder goroutine, and on every tick
// emits the oldest queued frame via out, or SilenceFrame if the queue is
// empty. Ticks are scheduled against an absolute deadline that advances by
// FrameDuration each time, never against "time since last tick", so a slow
// consumer or a GC pause does not cause accumulating drift.
//
// Run blocks until ctx is cancelled or src.Live is closed and drained, and
// closes out before returning.
func Run(ctx context.Context, cfg Config, src Source, out chan<- []byte, hooks Hooks) {
	defer close(out)

	clock := cfg.Clock
	if clock == nil {
		clock = RealClock
	}
	queueSize := cfg.QueueSize
	if queueSize < 1 {
		queueSize = 1
	}

	queue := make(chan []byte, queueSize)
	lagCh := make(chan int, queueSize)
	feederDone := make(chan struct{})

	// Prime the queue synchronously so the first ticks never race an
	// async feeder for frames that are already known at call time.
	// Excess beyond queueSize is dropped; the ring buffer behind Prefill
	// is already bounded to queueSize by the registry.
	for _, f := range src.Prefill {
		select {
		case queue <- f:
		default:
		}
	}

	go func() {
		defer close(feederDone)
		for {
			select {
			case frame, ok := <-src.Live:
				if !ok {
					return
				}
				if frame.Lagged > 0 {
					select {
					case lagCh <- frame.Lagged:
					default:
					}
					continue
				}
				select {
				case queue <- frame.Data:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	firstReal := true
	deadline := clock.Now()

	for {
		select {
		case n := <-lagCh:
			if hooks.OnLagged != nil {
				hooks.OnLagged(n)
			}
		default:
		}

		var frame []byte
		select {
		case frame = <-queue:
		default:
			select {
			case <-feederDone:
				// src.Live is closed (or ctx is done) and the queue is drained.
				return
			default:
			}
			frame = cfg.SilenceFrame
			if hooks.OnUnderrun != nil {
				hooks.OnUnderrun()
			}
		}

		if firstReal && len(frame) > 0 && !isSilence(frame, cfg.SilenceFrame) {
			firstReal = false
			if hooks.OnFirstRealFrame != nil {
				hooks.OnFirstRealFrame()
			}
		}

		select {
		case out <- frame:
		case <-ctx.Done():
			return
		}

		deadline = deadline.Add(cfg.FrameDuration)
		timerC, stop := clock.NewTimer(deadline)
		select {
		case <-timerC:
		case <-ctx.Done():
			stop()
			return
		}
	}
}

// isSilence reports whether frame is the stream's precomputed silence
// frame. Compared by reference-equal slice header first (the hot path,
// since Run always passes cfg.SilenceFrame itself on underrun) and falls
// back to length so a producer-sent frame that happens to equal silence in
// content is still treated as a real frame for epoch-commit purposes.
func isSilence(frame, silence []byte) bool {
	if len(silence) == 0 {
		return false
	}
	if len(frame) != len(silence) {
		return false
	}
	return &frame[0] == &silence[0]
}
