package sources

import (
	"fmt"

	"jobscout/internal/config"
	"jobscout/internal/discovery"
	"jobscout/internal/fetch"
	"jobscout/internal/logging"
	"jobscout/internal/search"
	"jobscout/pkg/utils"
)

// Runtime owns the process-wide clients: the HTTP transport, the per-host
// limiter, the search client, the search call pool and the optional browser.
// One Runtime serves every run.
type Runtime struct {
	Deps      Deps
	Limiter   *fetch.HostLimiter
	Quota     *search.Quota
	Captchas  *utils.CaptchaDomainManager
	browser   *fetch.BrowserFetcher
	validator *discovery.Validator
	cfg       *config.Config
	logger    logging.Logger
}

// NewRuntime builds the shared clients from configuration
func NewRuntime(cfg *config.Config, logger logging.Logger) *Runtime {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	limiter := fetch.NewHostLimiter(fetch.LimiterConfig{
		RequestsPerMinute: cfg.Sources.HostRate,
		Burst:             cfg.Sources.Concurrency,
	}, logger)

	client := fetch.NewHTTPClient(cfg.Sources.CallTimeout)
	httpFetcher := fetch.NewHTTPFetcher(client, limiter, cfg.Sources.UserAgent, logger)
	captchas := utils.NewCaptchaDomainManager(cfg.Firecrawl.CaptchaDomainsFile)

	var fallback fetch.Fetcher
	if cfg.Firecrawl.APIKey != "" {
		fc, err := fetch.NewFirecrawlFetcher(cfg.Firecrawl.APIKey, cfg.Firecrawl.APIURL, cfg.Firecrawl.Timeout, logger)
		if err != nil {
			logger.Warn("Firecrawl fallback disabled", map[string]interface{}{"error": err.Error()})
		} else {
			fallback = fc
		}
	}

	rt := &Runtime{
		Limiter:   limiter,
		Quota:     search.NewQuota(cfg.Search.CallsPerRun, cfg.Search.QuotaWindow),
		Captchas:  captchas,
		validator: discovery.NewValidator(cfg.Validator.ATSHosts, cfg.Validator.JobBoards),
		cfg:       cfg,
		logger:    logger,
	}
	rt.Deps = Deps{
		Search: search.NewSerperClient(cfg, client, logger),
		HTTP:   httpFetcher,
		Pages:  fetch.NewHybridFetcher(httpFetcher, fallback, captchas, logger),
		Logger: logger,
	}

	if cfg.Browser.Enabled {
		rt.browser = fetch.NewBrowserFetcher(cfg.Browser.Headless, cfg.Browser.NavigationTimeout, limiter, logger)
		rt.Deps.Rendered = fetch.NewHybridFetcher(rt.browser, fallback, captchas, logger)
	}

	logger.Info("Source runtime initialized", map[string]interface{}{
		"firecrawl_fallback":    fallback != nil,
		"browser":               cfg.Browser.Enabled,
		"known_captcha_domains": captchas.GetDomainsCount(),
		"search_configured":     rt.Deps.Search.Configured(),
		"search_quota":          rt.Quota.Calls(),
		"search_quota_window":   cfg.Search.QuotaWindow.String(),
	})
	return rt
}

// NewOrchestrator wires the enabled adapters into an orchestrator
func (rt *Runtime) NewOrchestrator() (*discovery.Orchestrator, error) {
	opts, err := discovery.OptionsFromConfig(rt.cfg)
	if err != nil {
		return nil, err
	}
	opts.NewBudget = search.BudgetFactory(rt.Quota)

	orch, err := discovery.NewOrchestrator(NewAdapters(rt.cfg, rt.Deps), rt.validator, opts, rt.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build orchestrator: %w", err)
	}
	return orch, nil
}

// Close stops the limiter and shuts the browser down
func (rt *Runtime) Close() error {
	rt.Limiter.Stop()
	if rt.browser != nil {
		return rt.browser.Close()
	}
	return nil
}
