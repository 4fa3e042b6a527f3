// Package provider integrates external image-generation HTTP APIs behind a
// single adapter contract. Concrete providers are built from declarative
// endpoint configurations rather than bespoke client code, so adding a
// provider is a data change, not a new module.
package provider

import (
	"context"
	"fmt"

	"thumbnailer/internal/domain"
)

// FailureReason classifies why a provider attempt failed.
type FailureReason string

const (
	ReasonNetwork   FailureReason = "network_error"
	ReasonTimeout   FailureReason = "timeout"
	ReasonBadStatus FailureReason = "bad_status"
	ReasonMalformed FailureReason = "malformed_response"
	ReasonNoImage   FailureReason = "no_image_in_response"
)

// Failure is the single normalized error value returned by adapters. An
// adapter never surfaces an unstructured error.
type Failure struct {
	ProviderID string
	Reason     FailureReason
	HTTPStatus int
	Err        error
}

func (f *Failure) Error() string {
	base := fmt.Sprintf("%s: %s", f.ProviderID, f.Reason)
	if f.HTTPStatus > 0 {
		base = fmt.Sprintf("%s (http %d)", base, f.HTTPStatus)
	}
	if f.Err != nil {
		base = fmt.Sprintf("%s: %v", base, f.Err)
	}
	return base
}

func (f *Failure) Unwrap() error { return f.Err }

// Result carries the raw image bytes produced by one successful attempt,
// tagged with the adapter that produced them.
type Result struct {
	ProviderID  string
	Data        []byte
	ContentType string
	// SourceURL is set when the provider returned a hosted URL that was
	// downloaded, kept for observability.
	SourceURL string
}

// Request is the normalized input handed to every adapter.
type Request struct {
	Prompt      string
	AspectRatio domain.AspectRatio
}

// Adapter turns a composed prompt into image bytes or a *Failure.
type Adapter interface {
	ID() string
	Generate(ctx context.Context, req Request) (*Result, error)
}
