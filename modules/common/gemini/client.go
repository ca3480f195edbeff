package gemini

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"fitting-room-server/modules/common/config"
)

// ContentGenerator - the slice of the genai client the adapters use; *genai.Models satisfies it
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// NewClient - Genai client for the configured backend (Gemini API key or Vertex AI with ADC)
func NewClient(ctx context.Context, cfg *config.Config, log *zap.Logger) (*genai.Client, error) {
	cc := &genai.ClientConfig{}

	switch cfg.GeminiBackend {
	case config.BackendVertex:
		cc.Backend = genai.BackendVertexAI
		cc.Project = cfg.GoogleProject
		cc.Location = cfg.GoogleLocation
		creds, err := vertexCredentials(cfg, log)
		if err != nil {
			return nil, err
		}
		cc.Credentials = creds
	default:
		cc.Backend = genai.BackendGeminiAPI
		cc.APIKey = cfg.GeminiAPIKey
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	log.Info("✅ [Gemini] Client initialized",
		zap.String("backend", cfg.GeminiBackend),
		zap.String("model", cfg.GeminiModel))
	return client, nil
}
