package utils

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"jobscout/internal/logging"
)

// CaptchaDomainManager tracks hosts that answered with a bot challenge.
// Pages on these hosts (and their subdomains) are fetched through the
// rendering fallback instead of plain HTTP. An empty file path keeps
// the list in memory only.
type CaptchaDomainManager struct {
	path    string
	domains map[string]time.Time // domain -> first seen
	mu      sync.RWMutex
	logger  logging.Logger
}

// NewCaptchaDomainManager loads the list from path and adds any seed domains
func NewCaptchaDomainManager(path string, seed ...string) *CaptchaDomainManager {
	manager := &CaptchaDomainManager{
		path:    path,
		domains: make(map[string]time.Time),
		logger:  logging.GetGlobalLogger(),
	}

	if err := manager.loadDomains(); err != nil {
		manager.logger.Error("Failed to load captcha domains from file", map[string]interface{}{
			"file":  path,
			"error": err.Error(),
		})
	}

	now := time.Now()
	for _, d := range seed {
		d = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(d)), "www.")
		if _, ok := manager.domains[d]; d != "" && !ok {
			manager.domains[d] = now
		}
	}

	return manager
}

// IsKnownCaptchaDomain reports whether the URL's host, or a parent of it, is listed
func (cdm *CaptchaDomainManager) IsKnownCaptchaDomain(urlStr string) bool {
	domain, err := extractDomain(urlStr)
	if err != nil {
		return false
	}

	cdm.mu.RLock()
	defer cdm.mu.RUnlock()

	for {
		if _, exists := cdm.domains[domain]; exists {
			return true
		}
		dot := strings.IndexByte(domain, '.')
		if dot < 0 || !strings.Contains(domain[dot+1:], ".") {
			return false
		}
		domain = domain[dot+1:]
	}
}

// AddCaptchaDomain records the URL's host and persists the list
func (cdm *CaptchaDomainManager) AddCaptchaDomain(urlStr string) error {
	domain, err := extractDomain(urlStr)
	if err != nil {
		return fmt.Errorf("failed to extract domain from URL %s: %w", urlStr, err)
	}

	cdm.mu.Lock()
	defer cdm.mu.Unlock()

	if _, exists := cdm.domains[domain]; exists {
		return nil
	}
	cdm.domains[domain] = time.Now()

	cdm.logger.Info("Added new captcha domain", map[string]interface{}{
		"domain":      domain,
		"total_count": len(cdm.domains),
	})

	if err := cdm.saveDomains(); err != nil {
		cdm.logger.Error("Failed to save captcha domains to file", map[string]interface{}{
			"file":  cdm.path,
			"error": err.Error(),
		})
	}
	return nil
}

// GetDomainsCount returns the number of known captcha domains
func (cdm *CaptchaDomainManager) GetDomainsCount() int {
	cdm.mu.RLock()
	defer cdm.mu.RUnlock()
	return len(cdm.domains)
}

func (cdm *CaptchaDomainManager) loadDomains() error {
	if cdm.path == "" {
		return nil
	}

	file, err := os.Open(cdm.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open captcha domains file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "\t", 2)
		firstSeen := time.Now()
		if len(parts) > 1 {
			if parsed, err := time.Parse(time.RFC3339, parts[1]); err == nil {
				firstSeen = parsed
			}
		}
		cdm.domains[parts[0]] = firstSeen
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading captcha domains file: %w", err)
	}

	cdm.logger.Debug("Loaded captcha domains from file", map[string]interface{}{
		"count": len(cdm.domains),
	})
	return nil
}

// saveDomains writes the list sorted by domain; callers hold the write lock
func (cdm *CaptchaDomainManager) saveDomains() error {
	if cdm.path == "" {
		return nil
	}

	file, err := os.Create(cdm.path)
	if err != nil {
		return fmt.Errorf("failed to create captcha domains file: %w", err)
	}
	defer file.Close()

	names := make([]string, 0, len(cdm.domains))
	for domain := range cdm.domains {
		names = append(names, domain)
	}
	sort.Strings(names)

	w := bufio.NewWriter(file)
	fmt.Fprintf(w, "# Captcha-protected domains (automatically managed)\n")
	fmt.Fprintf(w, "# Format: domain\\tfirst_seen_timestamp\n\n")
	for _, domain := range names {
		fmt.Fprintf(w, "%s\t%s\n", domain, cdm.domains[domain].Format(time.RFC3339))
	}
	return w.Flush()
}

func extractDomain(urlStr string) (string, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}

	hostname := strings.ToLower(parsedURL.Hostname())
	if hostname == "" {
		return "", fmt.Errorf("no hostname found in URL")
	}

	return strings.TrimPrefix(hostname, "www."), nil
}
