package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Source tags as they appear in configuration. They mirror discovery.SourceTag.
const (
	SourceCompanyCareers = "company_careers"
	SourceWebSearch      = "google_search"
	SourceRemoteOK       = "remoteok"
	SourceWeWorkRemotely = "we_work_remotely"
	SourceWellfound      = "wellfound"
	SourceYCJobs         = "yc_jobs"
	SourceHNHiring       = "hn_hiring"
	SourceRemoteCo       = "remote_co"
)

// Call timeout bounds for a single network round trip made by an adapter.
const (
	MinCallTimeout = 5 * time.Second
	MaxCallTimeout = 10 * time.Second
)

// AdapterSettings configures one logging adapter
type AdapterSettings struct {
	Name    string                 `yaml:"name"`
	Type    string                 `yaml:"type"`
	Enabled bool                   `yaml:"enabled"`
	Options map[string]interface{} `yaml:"options"`
}

// Config represents the application configuration
type Config struct {
	Server struct {
		Port         int           `yaml:"port"`
		Host         string        `yaml:"host"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
		IdleTimeout  time.Duration `yaml:"idle_timeout"`
	} `yaml:"server"`

	Discovery struct {
		MaxJobs       int           `yaml:"max_jobs"`
		RunDeadline   time.Duration `yaml:"run_deadline"`
		PerCompanyCap int           `yaml:"per_company_cap"`
		CappedSources []string      `yaml:"capped_sources"`
	} `yaml:"discovery"`

	Search struct {
		Provider       string        `yaml:"provider"`
		APIKey         string        `yaml:"api_key"`
		Endpoint       string        `yaml:"endpoint"`
		CallsPerRun    int           `yaml:"calls_per_run"`
		QuotaWindow    time.Duration `yaml:"quota_window"` // refill window of the process-wide call pool
		RatePerSecond  float64       `yaml:"rate_per_second"`
		Burst          int           `yaml:"burst"`
		Timeout        time.Duration `yaml:"timeout"`
		CompanyResults int           `yaml:"company_results"`
		WebQueries     int           `yaml:"web_queries"`
		WebResults     int           `yaml:"web_results"`
		QuerySuffix    string        `yaml:"query_suffix"`
	} `yaml:"search"`

	Sources struct {
		Priority     []string          `yaml:"priority"`
		Disabled     []string          `yaml:"disabled"`
		CallTimeout  time.Duration     `yaml:"call_timeout"`
		Concurrency  int               `yaml:"concurrency"`
		MaxCompanies int               `yaml:"max_companies"`
		UserAgent    string            `yaml:"user_agent"`
		URLs         map[string]string `yaml:"urls"`
		Limits       map[string]int    `yaml:"limits"`
		HostRate     int               `yaml:"host_rate"` // requests per minute per host
	} `yaml:"sources"`

	Validator struct {
		ATSHosts  []string `yaml:"ats_hosts"`
		JobBoards []string `yaml:"job_boards"`
	} `yaml:"validator"`

	Vocabulary struct {
		Skills    []string `yaml:"skills"`
		Locations []string `yaml:"locations"`
		MaxSkills int      `yaml:"max_skills"`
	} `yaml:"vocabulary"`

	Firecrawl struct {
		APIKey             string        `yaml:"api_key"`
		APIURL             string        `yaml:"api_url"`
		Timeout            time.Duration `yaml:"timeout"`
		CaptchaDomainsFile string        `yaml:"captcha_domains_file"`
	} `yaml:"firecrawl"`

	Browser struct {
		Enabled           bool          `yaml:"enabled"`
		Headless          bool          `yaml:"headless"`
		Sources           []string      `yaml:"sources"`
		NavigationTimeout time.Duration `yaml:"navigation_timeout"`
	} `yaml:"browser"`

	Runs struct {
		Store           string        `yaml:"store"` // memory or redis
		Workers         int           `yaml:"workers"`
		QueueSize       int           `yaml:"queue_size"`
		MaxAge          time.Duration `yaml:"max_age"`
		CleanupSchedule string        `yaml:"cleanup_schedule"`
	} `yaml:"runs"`

	Redis struct {
		URL       string        `yaml:"url"`
		Password  string        `yaml:"password"`
		DB        int           `yaml:"db"`
		Timeout   time.Duration `yaml:"timeout"`
		KeyPrefix string        `yaml:"key_prefix"`
	} `yaml:"redis"`

	Logging struct {
		Level    string            `yaml:"level"`
		Format   string            `yaml:"format"`
		Output   string            `yaml:"output"`
		Adapters []AdapterSettings `yaml:"adapters"`
	} `yaml:"logging"`
}

// DefaultPriority is the fixed source order used for merging and output.
var DefaultPriority = []string{
	SourceCompanyCareers,
	SourceWebSearch,
	SourceRemoteOK,
	SourceWeWorkRemotely,
	SourceWellfound,
	SourceYCJobs,
	SourceHNHiring,
	SourceRemoteCo,
}

var (
	bracedVar = regexp.MustCompile(`\$\{([^}]+)\}`)
	bareVar   = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
)

// expandEnvVars expands environment variables in a string using ${VAR} or $VAR syntax.
// Unknown variables are left untouched.
func expandEnvVars(s string) string {
	s = bracedVar.ReplaceAllStringFunc(s, func(match string) string {
		if val := os.Getenv(match[2 : len(match)-1]); val != "" {
			return val
		}
		return match
	})

	return bareVar.ReplaceAllStringFunc(s, func(match string) string {
		if val := os.Getenv(match[1:]); val != "" {
			return val
		}
		return match
	})
}

// Default returns a configuration populated with built-in defaults only
func Default() *Config {
	config := &Config{}

	config.Server.Port = 8080
	config.Server.Host = "0.0.0.0"
	config.Server.ReadTimeout = 30 * time.Second
	config.Server.WriteTimeout = 90 * time.Second
	config.Server.IdleTimeout = 60 * time.Second

	config.Discovery.MaxJobs = 200
	config.Discovery.RunDeadline = 60 * time.Second
	config.Discovery.PerCompanyCap = 3
	config.Discovery.CappedSources = []string{SourceCompanyCareers}

	config.Search.Provider = "serper"
	config.Search.Endpoint = "https://google.serper.dev/search"
	config.Search.CallsPerRun = 38
	config.Search.QuotaWindow = 60 * time.Second
	config.Search.RatePerSecond = 1
	config.Search.Burst = 2
	config.Search.Timeout = 8 * time.Second
	config.Search.CompanyResults = 5
	config.Search.WebQueries = 8
	config.Search.WebResults = 8
	config.Search.QuerySuffix = "(remote OR USA OR UK OR Canada OR San Francisco) apply now"

	config.Sources.Priority = append([]string(nil), DefaultPriority...)
	config.Sources.CallTimeout = 8 * time.Second
	config.Sources.Concurrency = 4
	config.Sources.MaxCompanies = 30
	config.Sources.HostRate = 120
	config.Sources.UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	config.Sources.URLs = map[string]string{
		SourceRemoteOK:       "https://remoteok.com/api",
		SourceWeWorkRemotely: "https://weworkremotely.com/remote-jobs/search",
		SourceWellfound:      "https://wellfound.com",
		SourceYCJobs:         "https://www.workatastartup.com",
		SourceHNHiring:       "https://news.ycombinator.com/jobs",
		SourceRemoteCo:       "https://remote.co/remote-jobs/developer/",
	}
	config.Sources.Limits = map[string]int{
		SourceRemoteOK:       15,
		SourceWeWorkRemotely: 15,
		SourceWellfound:      15,
		SourceYCJobs:         20,
		SourceHNHiring:       20,
		SourceRemoteCo:       15,
	}

	config.Vocabulary.MaxSkills = 5

	config.Firecrawl.APIURL = "https://api.firecrawl.dev"
	config.Firecrawl.Timeout = 30 * time.Second
	config.Firecrawl.CaptchaDomainsFile = "captcha-domains.txt"

	config.Browser.Headless = true
	config.Browser.Sources = []string{SourceWellfound}
	config.Browser.NavigationTimeout = 10 * time.Second

	config.Runs.Store = "memory"
	config.Runs.Workers = 4
	config.Runs.QueueSize = 100
	config.Runs.MaxAge = 24 * time.Hour
	config.Runs.CleanupSchedule = "@every 1h"

	config.Redis.URL = "redis://localhost:6379"
	config.Redis.Timeout = 5 * time.Second
	config.Redis.KeyPrefix = "jobscout:run:"

	config.Logging.Level = "info"
	config.Logging.Format = "json"
	config.Logging.Output = "stdout"

	return config
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	// Load .env file if it exists (ignore errors if file doesn't exist)
	_ = godotenv.Load()

	config := Default()

	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), config); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", configPath, err)
			}
		}
	}

	config.loadFromEnv()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks ranges and normalises values that have hard bounds
func (c *Config) Validate() error {
	if c.Discovery.MaxJobs <= 0 {
		return fmt.Errorf("discovery.max_jobs must be positive, got %d", c.Discovery.MaxJobs)
	}
	if c.Discovery.RunDeadline <= 0 {
		return fmt.Errorf("discovery.run_deadline must be positive, got %s", c.Discovery.RunDeadline)
	}
	if c.Discovery.PerCompanyCap <= 0 {
		return fmt.Errorf("discovery.per_company_cap must be positive, got %d", c.Discovery.PerCompanyCap)
	}
	if c.Search.CallsPerRun < 0 {
		return fmt.Errorf("search.calls_per_run must not be negative, got %d", c.Search.CallsPerRun)
	}
	if c.Search.QuotaWindow <= 0 {
		return fmt.Errorf("search.quota_window must be positive, got %s", c.Search.QuotaWindow)
	}
	if c.Search.RatePerSecond <= 0 {
		return fmt.Errorf("search.rate_per_second must be positive, got %v", c.Search.RatePerSecond)
	}
	if c.Search.Burst <= 0 {
		c.Search.Burst = 1
	}
	if c.Sources.Concurrency <= 0 {
		c.Sources.Concurrency = 1
	}

	if c.Sources.CallTimeout < MinCallTimeout {
		c.Sources.CallTimeout = MinCallTimeout
	} else if c.Sources.CallTimeout > MaxCallTimeout {
		c.Sources.CallTimeout = MaxCallTimeout
	}

	seen := make(map[string]bool, len(c.Sources.Priority))
	for _, tag := range c.Sources.Priority {
		if !IsKnownSource(tag) {
			return fmt.Errorf("sources.priority: unknown source %q", tag)
		}
		if seen[tag] {
			return fmt.Errorf("sources.priority: duplicate source %q", tag)
		}
		seen[tag] = true
	}
	// Sources missing from a custom priority list keep their default relative order at the end.
	for _, tag := range DefaultPriority {
		if !seen[tag] {
			c.Sources.Priority = append(c.Sources.Priority, tag)
		}
	}

	switch c.Runs.Store {
	case "memory", "redis":
	default:
		return fmt.Errorf("runs.store must be memory or redis, got %q", c.Runs.Store)
	}

	return nil
}

// IsKnownSource reports whether tag names one of the eight sources
func IsKnownSource(tag string) bool {
	for _, known := range DefaultPriority {
		if tag == known {
			return true
		}
	}
	return false
}

// SourceEnabled reports whether a source takes part in runs
func (c *Config) SourceEnabled(tag string) bool {
	for _, disabled := range c.Sources.Disabled {
		if strings.EqualFold(disabled, tag) {
			return false
		}
	}
	return true
}

// SourceURL returns the configured base URL for a direct source
func (c *Config) SourceURL(tag string) string {
	return c.Sources.URLs[tag]
}

// SourceLimit returns the per-call item limit for a direct source
func (c *Config) SourceLimit(tag string, fallback int) int {
	if limit, ok := c.Sources.Limits[tag]; ok && limit > 0 {
		return limit
	}
	return fallback
}

// UsesBrowser reports whether a source should be fetched through the rendered browser
func (c *Config) UsesBrowser(tag string) bool {
	if !c.Browser.Enabled {
		return false
	}
	for _, s := range c.Browser.Sources {
		if s == tag {
			return true
		}
	}
	return false
}

// loadFromEnv loads configuration from environment variables
func (c *Config) loadFromEnv() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	if host := os.Getenv("HOST"); host != "" {
		c.Server.Host = host
	}

	if apiKey := os.Getenv("SERPER_API_KEY"); apiKey != "" {
		c.Search.APIKey = apiKey
	}

	if endpoint := os.Getenv("SERPER_ENDPOINT"); endpoint != "" {
		c.Search.Endpoint = endpoint
	}

	if calls := os.Getenv("SEARCH_CALLS_PER_RUN"); calls != "" {
		if n, err := strconv.Atoi(calls); err == nil {
			c.Search.CallsPerRun = n
		}
	}

	if window := os.Getenv("SEARCH_QUOTA_WINDOW"); window != "" {
		if d, err := time.ParseDuration(window); err == nil {
			c.Search.QuotaWindow = d
		}
	}

	if maxJobs := os.Getenv("DISCOVERY_MAX_JOBS"); maxJobs != "" {
		if n, err := strconv.Atoi(maxJobs); err == nil {
			c.Discovery.MaxJobs = n
		}
	}

	if deadline := os.Getenv("DISCOVERY_RUN_DEADLINE"); deadline != "" {
		if d, err := time.ParseDuration(deadline); err == nil {
			c.Discovery.RunDeadline = d
		}
	}

	if callTimeout := os.Getenv("SOURCES_CALL_TIMEOUT"); callTimeout != "" {
		if d, err := time.ParseDuration(callTimeout); err == nil {
			c.Sources.CallTimeout = d
		}
	}

	if disabled := os.Getenv("SOURCES_DISABLED"); disabled != "" {
		c.Sources.Disabled = splitList(disabled)
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	if logFormat := os.Getenv("LOG_FORMAT"); logFormat != "" {
		c.Logging.Format = logFormat
	}

	if logOutput := os.Getenv("LOG_OUTPUT"); logOutput != "" {
		c.Logging.Output = logOutput
	}

	if firecrawlAPIKey := os.Getenv("FIRECRAWL_API_KEY"); firecrawlAPIKey != "" {
		c.Firecrawl.APIKey = firecrawlAPIKey
	}

	if firecrawlAPIURL := os.Getenv("FIRECRAWL_API_URL"); firecrawlAPIURL != "" {
		c.Firecrawl.APIURL = firecrawlAPIURL
	}

	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		c.Firecrawl.CaptchaDomainsFile = dataDir + "/captcha-domains.txt"
	}

	if browserEnabled := os.Getenv("BROWSER_ENABLED"); browserEnabled != "" {
		c.Browser.Enabled = browserEnabled == "true" || browserEnabled == "1"
	}

	if store := os.Getenv("RUNS_STORE"); store != "" {
		c.Runs.Store = store
	}

	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		c.Redis.URL = redisURL
	}

	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		c.Redis.Password = redisPassword
	}

	if redisDB := os.Getenv("REDIS_DB"); redisDB != "" {
		if db, err := strconv.Atoi(redisDB); err == nil {
			c.Redis.DB = db
		}
	}

	if redisTimeout := os.Getenv("REDIS_TIMEOUT"); redisTimeout != "" {
		if timeout, err := time.ParseDuration(redisTimeout); err == nil {
			c.Redis.Timeout = timeout
		}
	}

	c.loadLoggingAdapterEnvVars()
}

// loadLoggingAdapterEnvVars loads environment variables for logging adapters
func (c *Config) loadLoggingAdapterEnvVars() {
	for i := range c.Logging.Adapters {
		adapter := &c.Logging.Adapters[i]

		if adapter.Type != "file" {
			continue
		}
		if path := os.Getenv("LOG_FILE_PATH"); path != "" {
			if adapter.Options == nil {
				adapter.Options = make(map[string]interface{})
			}
			adapter.Options["file_path"] = path
		}
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
