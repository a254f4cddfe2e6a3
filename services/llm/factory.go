package llm

import (
	"fmt"
	"log/slog"
	"os"
)

// NewClientFromEnv picks the LLM backend from LLM_BACKEND ("openai" or
// "ollama", default "ollama").
func NewClientFromEnv() (LLMClient, error) {
	backend := os.Getenv("LLM_BACKEND")
	if backend == "" {
		backend = "ollama"
	}
	slog.Info("Selecting LLM backend", "backend", backend)
	switch backend {
	case "openai":
		return NewOpenAIClient()
	case "ollama":
		return NewOllamaClient()
	default:
		return nil, fmt.Errorf("unknown LLM_BACKEND %q", backend)
	}
}

// NewEmbedderFromEnv prefers the local embedding sidecar and falls back to
// the OpenAI embeddings API.
func NewEmbedderFromEnv() (Embedder, error) {
	if os.Getenv("EMBEDDING_SERVICE_URL") != "" {
		return NewHTTPEmbedder()
	}
	if os.Getenv("OPENAI_API_KEY") != "" {
		slog.Info("EMBEDDING_SERVICE_URL not set, using OpenAI embeddings")
		return NewOpenAIEmbedder()
	}
	return nil, fmt.Errorf("no embedding backend configured: set EMBEDDING_SERVICE_URL or OPENAI_API_KEY")
}
