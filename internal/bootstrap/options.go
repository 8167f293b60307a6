package bootstrap

import (
	"github.com/supportbot/finassist-go/internal/config"
	"github.com/supportbot/finassist-go/internal/model"
	"github.com/supportbot/finassist-go/internal/service"
)

// FallbackOptions 将配置转换为兜底服务参数，未配置的策略使用默认值
func FallbackOptions(cfg config.FallbackConfig) service.FallbackOptions {
	opts := service.FallbackOptions{
		Messages: service.Messages{
			Decline:      cfg.Messages.Decline,
			Disabled:     cfg.Messages.Disabled,
			Insufficient: cfg.Messages.Insufficient,
			Unavailable:  cfg.Messages.Unavailable,
		},
		Blocklist: cfg.Blocklist,
		Brand:     cfg.BrandName,
	}
	if opts.Messages.Unavailable == "" {
		opts.Messages.Unavailable = service.DefaultMessages().Unavailable
	}

	if len(cfg.Strategies) > 0 {
		opts.Profiles = make(map[model.Strategy]service.StrategyProfile, len(cfg.Strategies))
		for name, p := range cfg.Strategies {
			strategy, ok := model.ParseStrategy(name)
			if !ok || strategy == model.StrategyNone {
				continue
			}
			opts.Profiles[strategy] = service.StrategyProfile{
				K:           p.K,
				PerDocChars: p.PerDocChars,
				Params: service.GenerateParams{
					MaxTokens:   p.MaxTokens,
					Temperature: p.Temperature,
					MaxChars:    p.MaxChars,
				},
			}
		}
	}
	return opts
}

// StateManagerOptions 将配置转换为状态管理参数
func StateManagerOptions(cfg config.DialogueConfig) service.StateManagerOptions {
	opts := service.StateManagerOptions{
		DeclarePrefix: cfg.DeclarePrefix,
		ResetIntent:   cfg.ResetIntent,
	}
	if cfg.TypoCorrection {
		opts.Corrector = service.DefaultTypoCorrector()
	}
	if len(cfg.PhaseMap) > 0 {
		opts.PhaseMap = make(map[string]model.Phase, len(cfg.PhaseMap))
		for intent, phase := range cfg.PhaseMap {
			opts.PhaseMap[intent] = model.ParsePhase(phase)
		}
	}
	for _, r := range cfg.ProductRules {
		opts.Rules = append(opts.Rules, service.ProductRule{Product: r.Product, Keywords: r.Keywords})
	}
	return opts
}
