// Package storage publishes generated image bytes to a durable backend and
// hands back a stable, publicly fetchable URL.
package storage

import "context"

// Publisher accepts raw image bytes and returns the URL the asset is served
// from. Publishing the same key and bytes twice must not corrupt state.
type Publisher interface {
	Publish(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// extensionFor maps a content type onto a file extension for storage keys.
func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}
