package sources

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// nextData decodes the page-data blob that Next.js sites embed in script#__NEXT_DATA__
func nextData(doc *goquery.Document) (map[string]interface{}, error) {
	script := doc.Find("script#__NEXT_DATA__").First()
	if script.Length() == 0 {
		return nil, fmt.Errorf("no __NEXT_DATA__ script")
	}
	var data map[string]interface{}
	if err := json.Unmarshal([]byte(script.Text()), &data); err != nil {
		return nil, fmt.Errorf("invalid __NEXT_DATA__ JSON: %w", err)
	}
	return data, nil
}

// listingsFrom returns the first non-empty list of objects under
// props.pageProps.{jobs,jobListings,results}
func listingsFrom(data map[string]interface{}) []map[string]interface{} {
	pageProps := object(object(data, "props"), "pageProps")
	for _, key := range []string{"jobs", "jobListings", "results"} {
		raw, ok := pageProps[key].([]interface{})
		if !ok || len(raw) == 0 {
			continue
		}
		var out []map[string]interface{}
		for _, item := range raw {
			if m, ok := item.(map[string]interface{}); ok {
				out = append(out, m)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

func object(m map[string]interface{}, key string) map[string]interface{} {
	if m == nil {
		return nil
	}
	v, _ := m[key].(map[string]interface{})
	return v
}

// str returns the first non-blank string (or number) among keys
func str(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return fmt.Sprintf("%.0f", v)
		case json.Number:
			return v.String()
		}
	}
	return ""
}

// num returns an integer field, or def when absent
func num(m map[string]interface{}, key string, def int) int {
	if v, ok := m[key].(float64); ok {
		return int(v)
	}
	return def
}

// stringList returns a list of strings under key, ignoring other element types
func stringList(m map[string]interface{}, key string) []string {
	raw, _ := m[key].([]interface{})
	var out []string
	for _, item := range raw {
		switch v := item.(type) {
		case string:
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		case map[string]interface{}:
			if name := str(v, "name", "displayName"); name != "" {
				out = append(out, name)
			}
		}
	}
	return out
}

// companyOf reads company as either a nested object with a name or a plain string
func companyOf(m map[string]interface{}) string {
	if c := object(m, "company"); c != nil {
		if name := str(c, "name"); name != "" {
			return name
		}
	}
	return str(m, "company", "companyName", "company_name")
}
