package llm

import (
	"context"
	"testing"

	"github.com/copydesk-io/copydesk/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFallbackWithoutCredential(t *testing.T) {
	cfg := &config.Config{}
	cfg.Model.Name = "gemini-2.0-flash"
	cfg.Model.TimeoutSeconds = 5

	client, err := NewClient(cfg)
	require.NoError(t, err)
	assert.False(t, client.Configured())

	reply, err := client.Generate(context.Background(), "system prompt ignored", nil, "draft a bio")
	require.NoError(t, err)
	assert.Equal(t, "Noted. draft a bio", reply)
}
