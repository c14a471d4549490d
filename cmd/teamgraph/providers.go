package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/dshills/teamgraph/config"
	"github.com/dshills/teamgraph/graph/model"
	"github.com/dshills/teamgraph/graph/model/anthropic"
	"github.com/dshills/teamgraph/graph/model/google"
	"github.com/dshills/teamgraph/graph/model/openai"
)

var providerEnv = map[string]string{
	"anthropic": "ANTHROPIC_API_KEY",
	"openai":    "OPENAI_API_KEY",
	"google":    "GOOGLE_API_KEY",
}

// newChatModel creates the configured provider adapter. The returned close
// function is nil when the adapter holds no resources.
func newChatModel(ctx context.Context, cfg *config.Config) (model.ChatModel, func() error, error) {
	key := cfg.APIKey()
	if strings.TrimSpace(key) == "" {
		return nil, nil, fmt.Errorf("no API key for provider %s: set %s", cfg.Model.Provider, providerEnv[cfg.Model.Provider])
	}
	switch cfg.Model.Provider {
	case "anthropic":
		return anthropic.NewChatModel(key, cfg.Model.Name), nil, nil
	case "openai":
		return openai.NewChatModel(key, cfg.Model.Name), nil, nil
	case "google":
		m, err := google.NewChatModel(ctx, key, cfg.Model.Name)
		if err != nil {
			return nil, nil, fmt.Errorf("creating gemini client: %w", err)
		}
		return m, m.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported provider %q", cfg.Model.Provider)
	}
}
