package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// Gemini is the Generator implementation backed by the Gemini API.
type Gemini struct {
	client *genai.Client
}

// NewGemini creates a Gemini backend using the given API key.
func NewGemini(ctx context.Context, apiKey string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &Gemini{client: client}, nil
}

// GenerateText implements Generator.
func (g *Gemini) GenerateText(ctx context.Context, req Request) (string, error) {
	config := buildConfig(req)

	callStart := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, req.Model, buildContents(req), config)
	duration := time.Since(callStart)
	if err != nil {
		log.Error().Err(err).Str("model", req.Model).Dur("duration", duration).Msg("Gemini text call failed")
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	if resp == nil {
		return "", fmt.Errorf("received empty response from Gemini API")
	}

	text := resp.Text()
	log.Debug().
		Str("model", req.Model).
		Int("response_length", len(text)).
		Dur("duration", duration).
		Msg("Gemini text call complete")
	return text, nil
}

// GenerateImage implements Generator. The call requests TEXT+IMAGE response
// modalities; a response carrying no inline image payload is an error so the
// caller's retry logic engages.
func (g *Gemini) GenerateImage(ctx context.Context, req Request) (*ImageResult, error) {
	config := buildConfig(req)
	config.ResponseModalities = []string{"TEXT", "IMAGE"}

	callStart := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, req.Model, buildContents(req), config)
	duration := time.Since(callStart)
	if err != nil {
		log.Error().Err(err).Str("model", req.Model).Dur("duration", duration).Msg("Gemini image call failed")
		return nil, fmt.Errorf("failed to generate image: %w", err)
	}
	if resp == nil {
		return nil, fmt.Errorf("received empty response from Gemini API")
	}

	result := &ImageResult{}
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				result.Data = part.InlineData.Data
				result.MIME = part.InlineData.MIMEType
			}
			if part.Text != "" {
				result.Text += part.Text
			}
		}
	}

	if result.Data == nil {
		return nil, fmt.Errorf("no image returned in response (text: %s)", truncate(result.Text, 200))
	}

	log.Debug().
		Str("model", req.Model).
		Int("output_bytes", len(result.Data)).
		Str("output_mime", result.MIME).
		Dur("duration", duration).
		Msg("Gemini image call complete")
	return result, nil
}

// buildContents converts the request parts into genai content.
func buildContents(req Request) []*genai.Content {
	parts := make([]*genai.Part, 0, len(req.Parts))
	for _, p := range req.Parts {
		if p.Data != nil {
			parts = append(parts, &genai.Part{
				InlineData: &genai.Blob{MIMEType: p.MIME, Data: p.Data},
			})
			continue
		}
		if p.Text != "" {
			parts = append(parts, &genai.Part{Text: p.Text})
		}
	}
	return []*genai.Content{{Role: "user", Parts: parts}}
}

// buildConfig converts the request settings into a genai generation config.
func buildConfig(req Request) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		Temperature:     req.Temperature,
		TopP:            req.TopP,
		MaxOutputTokens: req.MaxOutputTokens,
	}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}
	return config
}

// truncate shortens a string to maxLen, appending "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
