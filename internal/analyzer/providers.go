package analyzer

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/gzhole/groupguard/internal/config"
)

// FromConfig builds a registry holding every provider defined in cfg.
func FromConfig(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Registry, error) {
	reg := NewRegistry(NewPrompt(cfg.DefaultReviewRules, cfg.CustomReviewRules), log)

	ids := make([]string, 0, len(cfg.Providers))
	for id := range cfg.Providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		pc := cfg.Providers[id]
		var (
			p   Provider
			err error
		)
		switch pc.Type {
		case "openai":
			p, err = NewOpenAI(pc)
		case "gemini":
			p, err = NewGemini(ctx, pc)
		default:
			err = fmt.Errorf("unsupported type %q", pc.Type)
		}
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", id, err)
		}
		reg.Register(id, p)
		reg.log.Info("registered analyzer provider",
			zap.String("provider", id), zap.String("type", pc.Type), zap.String("model", pc.Model))
	}
	return reg, nil
}
