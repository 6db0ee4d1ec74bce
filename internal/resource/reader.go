// Package resource implements the resource reader of spec §4.H: resolves
// a tab/{id}/{kind} URI against the snapshot cache and returns shaped
// bytes.
package resource

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/agentbridge/devtools-bridge/internal/buffers"
	"github.com/agentbridge/devtools-bridge/internal/mcp"
	"github.com/agentbridge/devtools-bridge/internal/shape"
	"github.com/agentbridge/devtools-bridge/internal/snapshot"
)

const (
	KindContent = "content"
	KindDOM     = "dom"
	KindConsole = "console"
)

// Cache is the subset of *snapshot.Cache the reader needs.
type Cache interface {
	Get(tabID int) *snapshot.Tab
	ListAvailable() []snapshot.ResourceDescriptor
}

// Reader is the H component.
type Reader struct {
	cache       Cache
	maxHTML     int
	maxDOMNodes int
}

func NewReader(cache Cache, maxHTML, maxDOMNodes int) *Reader {
	return &Reader{cache: cache, maxHTML: maxHTML, maxDOMNodes: maxDOMNodes}
}

// ParsedURI is a validated tab/{id}/{kind} reference.
type ParsedURI struct {
	TabID int
	Kind  string
}

// ParseURI validates a resource URI of exact form tab/{integer}/{kind}
// (spec §4.H, §6.3 Resource URI format — a transport-specific scheme
// prefix, if any, is the caller's concern; Reader validates the suffix
// only).
func ParseURI(uri string) (ParsedURI, *mcp.StructuredError) {
	uri = strings.TrimPrefix(uri, "/")
	parts := strings.Split(uri, "/")
	if len(parts) != 3 || parts[0] != "tab" {
		return ParsedURI{}, mcp.NewError(mcp.ErrInvalidURI, "expected tab/{id}/{content|dom|console}")
	}
	id, err := strconv.Atoi(parts[1])
	if err != nil {
		return ParsedURI{}, mcp.NewError(mcp.ErrInvalidURI, "tab id must be an integer")
	}
	switch parts[2] {
	case KindContent, KindDOM, KindConsole:
	default:
		return ParsedURI{}, mcp.NewError(mcp.ErrInvalidURI, "kind must be one of content, dom, console")
	}
	return ParsedURI{TabID: id, Kind: parts[2]}, nil
}

// Read resolves a parsed URI against the cache (spec §4.H).
func (r *Reader) Read(p ParsedURI) (json.RawMessage, *mcp.StructuredError) {
	tab := r.cache.Get(p.TabID)
	if tab == nil {
		return nil, mcp.NewError(mcp.ErrNotFound, "no snapshot for that tab")
	}

	switch p.Kind {
	case KindContent:
		text, _, _ := buffers.TruncateText(tab.PageContent, r.maxHTML)
		b, _ := json.Marshal(text)
		return b, nil

	case KindDOM:
		if tab.DOMSnapshot == nil {
			return nil, mcp.NewError(mcp.ErrNotFound, "no DOM snapshot for that tab")
		}
		node, _, _ := shape.TruncateDOMNodes(tab.DOMSnapshot, r.maxDOMNodes)
		b, err := json.Marshal(node)
		if err != nil {
			return nil, mcp.NewError(mcp.ErrNotFound, "failed to encode DOM snapshot")
		}
		return b, nil

	case KindConsole:
		messages := tab.ConsoleLogBuffer
		limited := false
		if len(messages) > 100 {
			messages = messages[len(messages)-100:]
			limited = true
		}
		out := map[string]any{
			"messages": messages,
			"count":    len(messages),
			"limited":  limited,
		}
		b, _ := json.Marshal(out)
		return b, nil

	default:
		return nil, mcp.NewError(mcp.ErrInvalidURI, "unknown kind")
	}
}

// Available lists every resource descriptor derived from the cache (spec
// §6.1 resources/list).
func (r *Reader) Available() []mcp.Resource {
	descs := r.cache.ListAvailable()
	out := make([]mcp.Resource, 0, len(descs))
	for _, d := range descs {
		out = append(out, mcp.Resource{
			URI:      d.URI,
			Name:     d.URI,
			MimeType: "application/json",
		})
	}
	return out
}
