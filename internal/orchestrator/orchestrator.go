// Package orchestrator sequences provider adapters for a generation job:
// first success wins, failures are aggregated, and the job is guaranteed to
// reach exactly one terminal status.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"thumbnailer/internal/domain"
	"thumbnailer/internal/promptgen"
	"thumbnailer/internal/provider"
	"thumbnailer/internal/storage"
)

// ExhaustedError reports that every adapter in the chain failed. Its message
// lists one entry per adapter tried so operators can see the whole picture.
type ExhaustedError struct {
	Failures []*provider.Failure
}

func (e *ExhaustedError) Error() string {
	if len(e.Failures) == 0 {
		return "no providers configured"
	}
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, f.Error())
	}
	return "all providers failed: " + strings.Join(parts, "; ")
}

// PublishError reports that generation succeeded but durable storage of the
// asset did not. Kept distinct from ExhaustedError so clients can tell "no
// provider worked" apart from "generation worked but storage failed".
type PublishError struct {
	ProviderID string
	Err        error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish failed after %s generation: %v", e.ProviderID, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// Orchestrator runs the fallback chain for one job at a time. Multiple jobs
// may be processed concurrently on distinct goroutines; the orchestrator
// itself holds no per-job state.
type Orchestrator struct {
	repo           domain.ThumbnailRepository
	publisher      storage.Publisher
	adapters       []provider.Adapter
	attemptTimeout time.Duration
	logger         zerolog.Logger
}

// New wires the orchestrator. attemptTimeout bounds every individual adapter
// attempt; a hung provider is cut off and the next adapter is tried.
func New(repo domain.ThumbnailRepository, publisher storage.Publisher, adapters []provider.Adapter, attemptTimeout time.Duration, logger zerolog.Logger) *Orchestrator {
	if attemptTimeout <= 0 {
		attemptTimeout = 90 * time.Second
	}
	return &Orchestrator{
		repo:           repo,
		publisher:      publisher,
		adapters:       adapters,
		attemptTimeout: attemptTimeout,
		logger:         logger.With().Str("component", "orchestrator").Logger(),
	}
}

// AdapterIDs returns the configured chain order, used by the health endpoint.
func (o *Orchestrator) AdapterIDs() []string {
	ids := make([]string, len(o.adapters))
	for i, a := range o.adapters {
		ids[i] = a.ID()
	}
	return ids
}

// Deadline is the overall budget for one job: every adapter gets one bounded
// attempt plus slack for the publish step.
func (o *Orchestrator) Deadline() time.Duration {
	return o.attemptTimeout*time.Duration(len(o.adapters)) + 30*time.Second
}

// Prepare composes the provider prompt and moves the job to generating. It
// runs synchronously before any provider call so the observable ordering
// invariant holds: a caller polling the store sees generating before the
// first adapter is invoked.
func (o *Orchestrator) Prepare(ctx context.Context, t *domain.Thumbnail) error {
	t.ComposedPrompt = promptgen.Compose(t)
	if err := o.repo.MarkGenerating(ctx, t.ID, t.ComposedPrompt); err != nil {
		return fmt.Errorf("mark generating: %w", err)
	}
	t.Status = domain.StatusGenerating
	return nil
}

// Process runs the fallback chain for a job already in generating state. It
// commits exactly one terminal transition; if the chain exits without having
// committed one (including on panic inside an adapter), the deferred
// finalizer fails the job so it is never stranded in generating.
func (o *Orchestrator) Process(ctx context.Context, t *domain.Thumbnail) error {
	logger := o.logger.With().Str("job_id", t.ID).Logger()

	terminal := false
	defer func() {
		if terminal {
			return
		}
		if err := o.failDetached(ctx, t, "generation aborted before completion"); err != nil {
			logger.Error().Err(err).Msg("failed to finalize aborted job")
		}
	}()

	req := provider.Request{Prompt: t.ComposedPrompt, AspectRatio: t.AspectRatio}
	failures := make([]*provider.Failure, 0, len(o.adapters))

	for _, adapter := range o.adapters {
		attemptCtx, cancel := context.WithTimeout(ctx, o.attemptTimeout)
		started := time.Now()
		res, err := adapter.Generate(attemptCtx, req)
		cancel()

		if err != nil {
			fail := normalizeFailure(err, adapter.ID())
			failures = append(failures, fail)
			logger.Warn().
				Str("provider", adapter.ID()).
				Str("reason", string(fail.Reason)).
				Dur("elapsed", time.Since(started)).
				Msg("provider attempt failed, trying next adapter")
			continue
		}

		logger.Info().
			Str("provider", res.ProviderID).
			Int("bytes", len(res.Data)).
			Dur("elapsed", time.Since(started)).
			Msg("provider attempt succeeded")

		key := assetKey(t)
		url, err := o.publisher.Publish(ctx, key, res.Data, res.ContentType)
		if err != nil {
			// The job context may be dead by now (a publish that ran out the
			// deadline); the terminal write must still go through, and if it
			// does not the deferred finalizer gets another shot.
			perr := &PublishError{ProviderID: res.ProviderID, Err: err}
			if ferr := o.failDetached(ctx, t, perr.Error()); ferr != nil {
				logger.Error().Err(ferr).Msg("failed to record publish failure")
			} else {
				terminal = true
			}
			return perr
		}

		if err := o.complete(ctx, t.ID, url, res.ProviderID); err != nil {
			if ferr := o.failDetached(ctx, t, fmt.Sprintf("persist result: %v", err)); ferr != nil {
				logger.Error().Err(ferr).Msg("failed to record completion failure")
			} else {
				terminal = true
			}
			return fmt.Errorf("complete job: %w", err)
		}
		t.Status = domain.StatusCompleted
		t.ImageURL = url
		t.Provider = res.ProviderID
		terminal = true
		return nil
	}

	exhausted := &ExhaustedError{Failures: failures}
	if err := o.failDetached(ctx, t, exhausted.Error()); err != nil {
		logger.Error().Err(err).Msg("failed to record exhaustion")
	} else {
		terminal = true
	}
	return exhausted
}

// Run prepares and processes a job in one step, used by the worker binary
// for claimed jobs.
func (o *Orchestrator) Run(ctx context.Context, t *domain.Thumbnail) error {
	if err := o.Prepare(ctx, t); err != nil {
		return err
	}
	return o.Process(ctx, t)
}

// complete commits the success transition on a context detached from the
// job's own, which may already be cancelled once the publish returns.
func (o *Orchestrator) complete(ctx context.Context, id, url, providerID string) error {
	commitCtx, cancel := terminalWriteContext(ctx)
	defer cancel()
	return o.repo.Complete(commitCtx, id, url, providerID)
}

// failDetached commits the failure transition on a detached context so an
// expired job deadline cannot strand the row in generating.
func (o *Orchestrator) failDetached(ctx context.Context, t *domain.Thumbnail, reason string) error {
	failCtx, cancel := terminalWriteContext(ctx)
	defer cancel()
	if err := o.repo.Fail(failCtx, t.ID, reason); err != nil {
		return err
	}
	t.Status = domain.StatusFailed
	t.ErrorMessage = reason
	return nil
}

func terminalWriteContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
}

// normalizeFailure guarantees the aggregate only ever contains structured
// failures, even if an adapter leaks a plain error.
func normalizeFailure(err error, providerID string) *provider.Failure {
	var f *provider.Failure
	if errors.As(err, &f) {
		return f
	}
	return &provider.Failure{ProviderID: providerID, Reason: provider.ReasonNetwork, Err: err}
}

func assetKey(t *domain.Thumbnail) string {
	return fmt.Sprintf("thumbnails/%s/%s", t.OwnerID, t.ID)
}
