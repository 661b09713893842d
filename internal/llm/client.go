// Package llm wraps the Gemini API behind a small interface the chat
// pipeline can run without: when no credential is configured the adapter
// degrades to a deterministic offline fallback instead of failing.
package llm

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/copydesk-io/copydesk/internal/config"
	"github.com/copydesk-io/copydesk/internal/models"
	"google.golang.org/genai"
)

// NoResponse is substituted when the model returns an empty result.
const NoResponse = "No response yet. Try me again in a moment."

// Client is the minimal generation capability the pipeline depends on.
type Client interface {
	// Generate sends the assembled system prompt, bounded history and the
	// new user message to the model and returns the trimmed reply.
	Generate(ctx context.Context, system string, history []models.ConversationTurn, message string) (string, error)
	// Configured reports whether a real model credential is present.
	Configured() bool
}

// GeminiClient calls the Gemini API via the google genai SDK.
type GeminiClient struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewClient builds the generation client from config. A missing API key is
// a first-class non-error state: the returned client answers with the
// offline fallback.
func NewClient(cfg *config.Config) (*GeminiClient, error) {
	c := &GeminiClient{
		model:   cfg.Model.Name,
		timeout: time.Duration(cfg.Model.TimeoutSeconds) * time.Second,
	}
	if cfg.Model.APIKey == "" {
		return c, nil
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: cfg.Model.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	c.client = client
	log.Printf("[LLM] gemini client initialized (model %s)", c.model)
	return c, nil
}

// Configured reports whether a real model credential is present.
func (c *GeminiClient) Configured() bool {
	return c.client != nil
}

// Generate implements Client.
func (c *GeminiClient) Generate(ctx context.Context, system string, history []models.ConversationTurn, message string) (string, error) {
	if c.client == nil {
		return "Noted. " + message, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	contents := make([]*genai.Content, 0, len(history)+1)
	for _, turn := range history {
		role := genai.RoleUser
		if turn.Role == models.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Content, genai.Role(role)))
	}
	contents = append(contents, genai.NewContentFromText(message, genai.RoleUser))

	cfg := &genai.GenerateContentConfig{}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	result, err := c.client.Models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}

	text := strings.TrimSpace(result.Text())
	if text == "" {
		return NoResponse, nil
	}
	return text, nil
}
