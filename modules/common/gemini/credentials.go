package gemini

import (
	"encoding/json"
	"fmt"
	"os"

	"cloud.google.com/go/auth"
	"cloud.google.com/go/auth/credentials"
	"go.uber.org/zap"

	"fitting-room-server/modules/common/config"
)

const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// vertexCredentials - explicit service account from VERTEXAI_CREDENTIALS_JSON or
// VERTEXAI_CREDENTIALS_PATH; nil lets genai fall back to Application Default Credentials
func vertexCredentials(cfg *config.Config, log *zap.Logger) (*auth.Credentials, error) {
	var data []byte
	switch {
	case cfg.VertexCredentialsJSON != "":
		log.Info("✅ [Gemini] Using VERTEXAI_CREDENTIALS_JSON from environment")
		data = []byte(cfg.VertexCredentialsJSON)
	case cfg.VertexCredentialsPath != "":
		log.Info("✅ [Gemini] Using credentials file", zap.String("path", cfg.VertexCredentialsPath))
		b, err := os.ReadFile(cfg.VertexCredentialsPath)
		if err != nil {
			return nil, fmt.Errorf("read credentials file: %w", err)
		}
		data = b
	default:
		log.Warn("⚠️ [Gemini] No explicit credentials found, using Application Default Credentials")
		return nil, nil
	}

	if !json.Valid(data) {
		return nil, fmt.Errorf("invalid JSON credentials")
	}

	creds, err := credentials.DetectDefault(&credentials.DetectOptions{
		Scopes:          []string{cloudPlatformScope},
		CredentialsJSON: data,
	})
	if err != nil {
		return nil, fmt.Errorf("load vertex credentials: %w", err)
	}
	return creds, nil
}
