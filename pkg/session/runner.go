// Package session drives one liveness challenge from a frame source to a
// result: it feeds frames to the challenge, reports progress, signals
// completion and records the outcome.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/MrCodeEU/facepass-liveness/pkg/camera"
	"github.com/MrCodeEU/facepass-liveness/pkg/config"
	"github.com/MrCodeEU/facepass-liveness/pkg/liveness"
	"github.com/MrCodeEU/facepass-liveness/pkg/logging"
	"github.com/MrCodeEU/facepass-liveness/pkg/notify"
	"github.com/MrCodeEU/facepass-liveness/pkg/storage"
)

// Result represents the outcome of a session.
type Result struct {
	Passed    bool
	SessionID string
	Duration  time.Duration
	Frames    int
	Error     error
	Reason    string
	Final     liveness.Snapshot
}

// Store persists session records.
type Store interface {
	SaveSession(rec storage.SessionRecord) error
}

// Options configures a Runner.
type Options struct {
	Challenge       liveness.Options
	Timeout         time.Duration // 0 disables
	CompletionDelay time.Duration
	// OnUpdate receives the initial snapshot and then every changed one.
	OnUpdate func(liveness.Snapshot)
	Metadata map[string]string
}

// OptionsFromConfig builds runner options from the liveness section.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	challenge, err := cfg.ChallengeOptions()
	if err != nil {
		return Options{}, err
	}
	return Options{
		Challenge:       challenge,
		Timeout:         cfg.Liveness.Timeout,
		CompletionDelay: cfg.Liveness.CompletionDelay,
	}, nil
}

// Runner runs liveness sessions against a frame source.
type Runner struct {
	source   camera.Source
	notifier notify.Notifier
	store    Store
	opts     Options
}

// NewRunner creates a runner. A nil notifier publishes nothing and a nil
// store keeps no records.
func NewRunner(source camera.Source, notifier notify.Notifier, store Store, opts Options) *Runner {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Runner{
		source:   source,
		notifier: notifier,
		store:    store,
		opts:     opts,
	}
}

// Run performs one liveness session. It returns once every gesture has been
// performed, or the source is exhausted, fails, times out or ctx is cancelled.
func (r *Runner) Run(ctx context.Context) Result {
	startTime := time.Now()

	challenge, err := liveness.NewChallenge(r.opts.Challenge)
	if err != nil {
		return Result{
			Error:  fmt.Errorf("failed to start challenge: %w", err),
			Reason: "invalid challenge options",
		}
	}

	result := Result{SessionID: challenge.ID()}
	info := r.source.Info()
	log := logging.Component("session").WithField("session_id", challenge.ID())
	log.WithFields(logrus.Fields{
		"source":   info.Kind,
		"path":     info.Path,
		"gestures": len(challenge.State().Sequence),
	}).Info("Starting liveness session")

	runCtx := ctx
	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	last := challenge.Snapshot()
	r.update(last)

	for !last.Complete {
		frame, err := r.source.Next(runCtx)
		if err != nil {
			runErr, reason := r.classify(ctx, runCtx, err, last)
			result.Error, result.Reason = runErr, reason
			break
		}

		result.Frames++
		snap := challenge.HandleFaces(frame.Faces)
		if snap != last {
			r.update(snap)
		}
		last = snap
	}

	result.Final = last
	result.Passed = last.Complete

	if result.Passed {
		log.WithFields(logrus.Fields{
			"frames":   result.Frames,
			"duration": time.Since(startTime).Round(time.Millisecond),
		}).Info("Liveness check passed")

		r.publish(ctx, log, challenge, last)
		r.hold(ctx)
	} else {
		var runErr *RunError
		if errors.As(result.Error, &runErr) {
			log.WithFields(logrus.Fields{
				"code":     runErr.Code,
				"frames":   result.Frames,
				"progress": last.Progress,
			}).Warnf("Liveness check failed: %s", result.Reason)
		}
	}

	result.Duration = time.Since(startTime)
	r.record(log, challenge, result, startTime)
	return result
}

// classify turns a source error into a RunError and a reason.
func (r *Runner) classify(ctx, runCtx context.Context, err error, last liveness.Snapshot) (*RunError, string) {
	switch {
	case errors.Is(err, io.EOF):
		code := ErrCodeIncomplete
		switch {
		case last.MultipleFacesDetected:
			code = ErrCodeMultipleFaces
		case !last.FaceDetected:
			code = ErrCodeNoFace
		}
		e := NewRunError(code, true)
		e.Details["completed"] = last.Index
		e.Details["total"] = last.Total
		return e, "frame source exhausted before all gestures were performed"

	case ctx.Err() != nil:
		return NewRunError(ErrCodeCancelled, false), "session cancelled"

	case runCtx.Err() != nil:
		e := NewRunError(ErrCodeTimeout, true)
		e.Details["timeout"] = r.opts.Timeout.String()
		return e, "liveness check timed out"

	case errors.Is(err, camera.ErrPermissionDenied):
		e := NewRunError(ErrCodePermissionDenied, false)
		e.Details["error"] = err.Error()
		return e, err.Error()

	case errors.Is(err, camera.ErrCameraNotFound):
		e := NewRunError(ErrCodeCamera, false)
		e.Details["error"] = err.Error()
		return e, err.Error()

	default:
		e := NewRunError(ErrCodeCamera, true)
		e.Details["error"] = err.Error()
		return e, err.Error()
	}
}

func (r *Runner) update(snap liveness.Snapshot) {
	if r.opts.OnUpdate != nil {
		r.opts.OnUpdate(snap)
	}
}

// publish sends the completion signal. Delivery failures do not fail the
// session.
func (r *Runner) publish(ctx context.Context, log *logrus.Entry, c *liveness.Challenge, snap liveness.Snapshot) {
	ev := notify.Event{
		SessionID: c.ID(),
		Passed:    true,
		Message:   snap.Status,
		Gestures:  c.State().Sequence,
		Progress:  snap.Progress,
		Timestamp: time.Now(),
	}
	if err := r.notifier.Publish(ctx, ev); err != nil {
		log.WithError(err).Warn("Failed to publish completion signal")
	}
}

// hold keeps the pass message up for the completion delay.
func (r *Runner) hold(ctx context.Context) {
	delay := r.opts.CompletionDelay
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func (r *Runner) record(log *logrus.Entry, c *liveness.Challenge, result Result, started time.Time) {
	if r.store == nil {
		return
	}

	info := r.source.Info()
	metadata := map[string]string{"path": info.Path}
	for k, v := range r.opts.Metadata {
		metadata[k] = v
	}

	state := c.State()
	rec := storage.SessionRecord{
		ID:         c.ID(),
		Passed:     result.Passed,
		Sequence:   state.Sequence,
		Completed:  state.Index,
		Progress:   state.Progress,
		Frames:     result.Frames,
		Source:     info.Kind,
		StartedAt:  started,
		FinishedAt: started.Add(result.Duration),
		Metadata:   metadata,
	}
	var runErr *RunError
	if errors.As(result.Error, &runErr) {
		rec.Reason = string(runErr.Code)
	}

	if err := r.store.SaveSession(rec); err != nil {
		log.WithError(err).Warn("Failed to save session record")
	}
}
