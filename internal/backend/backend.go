// Package backend defines the generative backend capability contract consumed
// by the pipeline: given prompt parts (and optionally images), return text or
// an image. The pipeline treats the backend as opaque; absence of content or a
// returned error both count as a failed attempt and are subject to retry by
// the caller.
package backend

import "context"

// Part is one piece of a prompt: either text or inline binary data.
type Part struct {
	Text string
	Data []byte
	MIME string
}

// TextPart builds a text prompt part.
func TextPart(text string) Part {
	return Part{Text: text}
}

// ImagePart builds an inline image prompt part.
func ImagePart(data []byte, mime string) Part {
	return Part{Data: data, MIME: mime}
}

// Request describes one backend call.
type Request struct {
	// Model is the backend model identifier.
	Model string

	// System is an optional system instruction.
	System string

	// Parts is the ordered user content: images first, then text, matching
	// how prompts reference "the images above".
	Parts []Part

	// Sampling parameters. Nil pointers leave the backend default in place.
	Temperature *float32
	TopP        *float32

	// MaxOutputTokens caps the response size. Zero means backend default.
	MaxOutputTokens int32
}

// ImageResult is the outcome of an image-generation call.
type ImageResult struct {
	// Data is the raw bytes of the generated image.
	Data []byte
	// MIME is the MIME type of the generated image.
	MIME string
	// Text is any text the model returned alongside the image.
	Text string
}

// Generator is the capability contract for the generative backend.
type Generator interface {
	// GenerateText runs a text-output call and returns the response text.
	// An empty response is reported as-is; callers decide whether empty
	// counts as failure.
	GenerateText(ctx context.Context, req Request) (string, error)

	// GenerateImage runs an image-output call. A response without inline
	// image data is an error, not a nil result.
	GenerateImage(ctx context.Context, req Request) (*ImageResult, error)
}
