// Package claude implements vision.Analyzer on the Anthropic Messages API.
package claude

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/liushuangls/go-anthropic/v2"

	"github.com/nsridhar/carvault/internal/vision"
)

type Analyzer struct {
	client *anthropic.Client
	model  string
}

func New(apiKey, model string, opts ...anthropic.ClientOption) *Analyzer {
	return &Analyzer{
		client: anthropic.NewClient(apiKey, opts...),
		model:  model,
	}
}

func (a *Analyzer) Analyze(ctx context.Context, r io.Reader, mimeType string) (*vision.AnalysisResult, error) {
	imageData, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	resp, err := a.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model: anthropic.Model(a.model),
		// A single car line is ~25 tokens; 1024 leaves headroom for
		// multi-car photos and verbose preamble.
		MaxTokens: 1024,
		Messages: []anthropic.Message{
			{
				Role: anthropic.RoleUser,
				Content: []anthropic.MessageContent{
					anthropic.NewImageMessageContent(anthropic.NewMessageContentSource(
						anthropic.MessagesContentSourceTypeBase64,
						normaliseMIME(mimeType),
						imageData,
					)),
					anthropic.NewTextMessageContent(vision.AnalysisPrompt),
				},
			},
		},
	})
	if err != nil {
		var apiErr *anthropic.APIError
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("claude rejected the request: %s", apiErr.Message)
		}
		return nil, fmt.Errorf("failed to call claude: %w", err)
	}

	text := resp.GetFirstContentText()
	return &vision.AnalysisResult{
		Cars:        vision.ParseResponse(text),
		RawResponse: text,
	}, nil
}

// normaliseMIME maps arbitrary MIME types to the set the Messages API
// accepts, coercing unknown types to jpeg.
func normaliseMIME(mimeType string) string {
	switch mimeType {
	case "image/png", "image/gif", "image/webp":
		return mimeType
	default:
		return "image/jpeg"
	}
}
