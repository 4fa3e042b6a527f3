package domain

import (
	"context"
	"time"
)

// ThumbnailRepository defines persistence for thumbnail generation jobs. All
// owner-scoped reads and deletes fail closed: a job belonging to another
// owner is reported as ErrNotFound, never returned.
type ThumbnailRepository interface {
	Create(ctx context.Context, t *Thumbnail) error

	// MarkGenerating records the composed prompt and moves the job out of
	// pending. Idempotent for jobs already claimed by a worker.
	MarkGenerating(ctx context.Context, id, composedPrompt string) error

	// Complete and Fail commit the job's single terminal transition.
	Complete(ctx context.Context, id, imageURL, providerID string) error
	Fail(ctx context.Context, id, reason string) error

	// Requeue returns a generating job to pending so the worker binary can
	// claim it, used when the in-process dispatch queue is full.
	Requeue(ctx context.Context, id string) error

	GetByID(ctx context.Context, id, ownerID string) (*Thumbnail, error)
	ListByOwner(ctx context.Context, ownerID string) ([]Thumbnail, error)
	Delete(ctx context.Context, id, ownerID string) error

	// ClaimPending atomically claims the oldest stranded pending job older
	// than minAge, moving it to generating. Returns ErrNoJobPending when the
	// queue is empty.
	ClaimPending(ctx context.Context, minAge time.Duration) (*Thumbnail, error)
}
