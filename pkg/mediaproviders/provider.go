package mediaproviders

import "context"

// Provider is a media generation backend. Each method returns a URL or
// host file path to the generated asset.
type Provider interface {
	GenerateImage(ctx context.Context, prompt, model string) (string, error)
	EditImage(ctx context.Context, prompt, imageURL, model string) (string, error)
	GenerateAudio(ctx context.Context, input, model string) (string, error)
}
