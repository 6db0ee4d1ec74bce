package shape

import (
	"net/url"
	"sort"
	"strings"
)

// NetworkFilter is the set of optional, ANDed filters over a network
// request sequence (spec §4.C Network requests).
type NetworkFilter struct {
	Method               string
	Status               []int // empty = any
	ResourceType         []string
	Domain               string
	FailedOnly           bool
	IncludeRequestBodies bool
	IncludeResponseBodies bool
	BodyByteLimit        int
}

func isFailed(status int) bool {
	return status >= 400 || status == 0
}

func matchesDomain(rawURL, domain string) bool {
	if domain == "" {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}
	return strings.Contains(strings.ToLower(u.Hostname()), strings.ToLower(domain))
}

func containsInt(set []int, v int) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func containsStr(set []string, v string) bool {
	for _, s := range set {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

// FilterNetwork applies f to requests. When no structural filter is
// active (method/status/resourceType/domain all unset) or when
// FailedOnly is set, the result is stably sorted so failed requests
// precede successful ones, ties preserving original order (spec §4.C).
// Bodies are replaced with OmittedBody unless the corresponding
// IncludeXBodies flag is set, in which case they are truncated to
// BodyByteLimit bytes.
func FilterNetwork(requests []NetworkRequest, f NetworkFilter) []map[string]any {
	hasStructuralFilter := f.Method != "" || len(f.Status) > 0 || len(f.ResourceType) > 0 || f.Domain != ""

	filtered := make([]NetworkRequest, 0, len(requests))
	for _, r := range requests {
		if f.Method != "" && !strings.EqualFold(r.Method, f.Method) {
			continue
		}
		if len(f.Status) > 0 && !containsInt(f.Status, r.Status) {
			continue
		}
		if len(f.ResourceType) > 0 && !containsStr(f.ResourceType, r.ResourceType) {
			continue
		}
		if !matchesDomain(r.URL, f.Domain) {
			continue
		}
		if f.FailedOnly && !isFailed(r.Status) {
			continue
		}
		filtered = append(filtered, r)
	}

	if !hasStructuralFilter || f.FailedOnly {
		sort.SliceStable(filtered, func(i, j int) bool {
			fi, fj := isFailed(filtered[i].Status), isFailed(filtered[j].Status)
			return fi && !fj
		})
	}

	out := make([]map[string]any, 0, len(filtered))
	for _, r := range filtered {
		out = append(out, shapeRequest(r, f))
	}
	return out
}

func shapeRequest(r NetworkRequest, f NetworkFilter) map[string]any {
	m := map[string]any{
		"method":       r.Method,
		"status":       r.Status,
		"url":          r.URL,
		"resourceType": r.ResourceType,
		"timestamp":    r.Timestamp,
	}
	m["requestBody"] = shapeBody(r.RequestBody, f.IncludeRequestBodies, f.BodyByteLimit)
	m["responseBody"] = shapeBody(r.ResponseBody, f.IncludeResponseBodies, f.BodyByteLimit)
	return m
}

func shapeBody(body []byte, include bool, limit int) any {
	if !include {
		return OmittedBody{Omitted: true, OriginalSize: len(body)}
	}
	if limit > 0 && len(body) > limit {
		return string(body[:limit])
	}
	return string(body)
}
