package fetch

import (
	"context"

	"jobscout/internal/logging"
	"jobscout/pkg/utils"
)

// HybridFetcher tries the primary fetcher and falls back to a rendering
// service when the host answers with a bot challenge. Challenged hosts are
// remembered so later requests go straight to the fallback.
type HybridFetcher struct {
	primary  Fetcher
	fallback Fetcher // may be nil
	domains  *utils.CaptchaDomainManager
	logger   logging.Logger
}

// NewHybridFetcher wires primary and fallback. domains may be nil.
func NewHybridFetcher(primary, fallback Fetcher, domains *utils.CaptchaDomainManager, logger logging.Logger) *HybridFetcher {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &HybridFetcher{
		primary:  primary,
		fallback: fallback,
		domains:  domains,
		logger:   logger.WithField("engine", "hybrid"),
	}
}

func (h *HybridFetcher) Name() string {
	if h.fallback == nil {
		return h.primary.Name()
	}
	return h.primary.Name() + "+" + h.fallback.Name()
}

// Fetch retrieves url through the primary or fallback fetcher
func (h *HybridFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	if h.fallback != nil && h.domains != nil && h.domains.IsKnownCaptchaDomain(url) {
		h.logger.Debug("Known challenge domain, using fallback directly", map[string]interface{}{"url": url})
		return h.fallback.Fetch(ctx, url)
	}

	page, err := h.primary.Fetch(ctx, url)
	if err == nil || !IsChallenge(err) {
		return page, err
	}

	if h.domains != nil {
		if addErr := h.domains.AddCaptchaDomain(url); addErr != nil {
			h.logger.Warn("Failed to record challenge domain", map[string]interface{}{
				"url":   url,
				"error": addErr.Error(),
			})
		}
	}

	if h.fallback == nil {
		return nil, err
	}

	h.logger.Info("Bot challenge detected, falling back", map[string]interface{}{
		"url":      url,
		"fallback": h.fallback.Name(),
	})
	return h.fallback.Fetch(ctx, url)
}
