package shape

import (
	"strings"

	"github.com/agentbridge/devtools-bridge/internal/buffers"
)

// DOMFilter is the ordered pipeline of spec §4.C DOM snapshot: selector
// descent, structural prune, computed-style stripping, then node-count
// truncation.
type DOMFilter struct {
	Selector       string // "#id", ".class", or bare "tag"; empty = whole tree
	ExcludeScripts bool
	ExcludeStyles  bool
	StripComputed  bool
	MaxDepth       int // 0 = unlimited; tool schema default is 5, max 15 (§6.3)
	MaxNodes       int // default 500, hard ceiling 2000
}

const (
	DefaultMaxDOMNodes = 500
	HardMaxDOMNodes    = 2000
)

// ErrSelectorNotFound indicates the selector matched nothing in the tree.
var ErrSelectorNotFound = notFoundErr("selector did not match any node")

type notFoundErr string

func (e notFoundErr) Error() string { return string(e) }

// FilterDOM applies f to root in the order selector descent, prune,
// computed-style stripping, node-count truncation (spec §4.C). Selector
// semantics are intentionally restricted to #id, .class, and bare tag;
// combinators, pseudo-classes, and attribute selectors are not supported
// (spec §4.C, §9 design note: "a full CSS engine is unnecessary and a
// hazard").
func FilterDOM(root *DOMNode, f DOMFilter) (*DOMNode, int, bool, error) {
	node := root
	if f.Selector != "" {
		match := findSelector(root, f.Selector)
		if match == nil {
			return nil, 0, false, ErrSelectorNotFound
		}
		node = match
	}

	pruned := pruneTree(node, f.ExcludeScripts, f.ExcludeStyles)
	if f.MaxDepth > 0 {
		pruneDepth(pruned, f.MaxDepth)
	}
	if f.StripComputed {
		stripComputed(pruned)
	}

	maxNodes := f.MaxNodes
	if maxNodes <= 0 {
		maxNodes = DefaultMaxDOMNodes
	}
	if maxNodes > HardMaxDOMNodes {
		maxNodes = HardMaxDOMNodes
	}

	node2, visited, truncated := TruncateDOMNodes(pruned, maxNodes)
	return node2, visited, truncated, nil
}

// findSelector performs a depth-first search for the first node matching
// a #id, .class, or bare tag selector.
func findSelector(root *DOMNode, selector string) *DOMNode {
	match := func(n *DOMNode) bool {
		switch {
		case strings.HasPrefix(selector, "#"):
			return n.Attrs["id"] == selector[1:]
		case strings.HasPrefix(selector, "."):
			return hasClass(n, selector[1:])
		default:
			return strings.EqualFold(n.Tag, selector)
		}
	}
	var walk func(n *DOMNode) *DOMNode
	walk = func(n *DOMNode) *DOMNode {
		if n == nil {
			return nil
		}
		if match(n) {
			return n
		}
		for _, c := range n.Children {
			if found := walk(c); found != nil {
				return found
			}
		}
		return nil
	}
	return walk(root)
}

func hasClass(n *DOMNode, class string) bool {
	classes := strings.Fields(n.Attrs["class"])
	for _, c := range classes {
		if c == class {
			return true
		}
	}
	return false
}

// pruneTree returns a copy of root with script/style nodes removed per
// flags (spec §4.C default: both removed).
func pruneTree(root *DOMNode, excludeScripts, excludeStyles bool) *DOMNode {
	if root == nil {
		return nil
	}
	cp := *root
	cp.Children = nil
	for _, c := range root.Children {
		if excludeScripts && strings.EqualFold(c.Tag, "script") {
			continue
		}
		if excludeStyles && strings.EqualFold(c.Tag, "style") {
			continue
		}
		cp.Children = append(cp.Children, pruneTree(c, excludeScripts, excludeStyles))
	}
	return &cp
}

// pruneDepth cuts children beyond maxDepth levels below root, replacing
// the cut point with a truncation placeholder. At depth 1 root's children
// are replaced by a single placeholder counting them.
func pruneDepth(root *DOMNode, maxDepth int) {
	if root == nil || maxDepth <= 0 {
		return
	}
	if maxDepth == 1 {
		if len(root.Children) > 0 {
			root.Children = []*DOMNode{{Truncated: true, RemainingSiblings: len(root.Children)}}
		}
		return
	}
	for _, c := range root.Children {
		pruneDepth(c, maxDepth-1)
	}
}

func stripComputed(root *DOMNode) {
	if root == nil {
		return
	}
	root.Computed = nil
	for _, c := range root.Children {
		stripComputed(c)
	}
}

// treeNode adapts *DOMNode to buffers.TreeNode.
type treeNode struct{ n *DOMNode }

func (t treeNode) Children() []buffers.TreeNode {
	out := make([]buffers.TreeNode, len(t.n.Children))
	for i, c := range t.n.Children {
		out[i] = treeNode{c}
	}
	return out
}

// TruncateDOMNodes walks root depth-first, detaching subtrees once
// maxNodes is reached and installing a truncation placeholder (spec
// §4.A, §4.C). Exported so H (internal/resource) can apply the same
// node-count truncation to a cached DOM snapshot without going through
// the rest of the filter pipeline (selector descent, pruning).
func TruncateDOMNodes(root *DOMNode, maxNodes int) (*DOMNode, int, bool) {
	// Build a mutable copy so we can prune children in place as the walk
	// reports truncation points.
	clone := cloneTree(root)

	visited, truncated := buffers.TruncateTree(
		treeNode{clone}, maxNodes,
		func(buffers.TreeNode) {},
		func(parent buffers.TreeNode, remaining int) {
			p := parent.(treeNode).n
			cut := len(p.Children) - remaining
			if cut < 0 || cut > len(p.Children) {
				return
			}
			p.Children = p.Children[:cut]
			p.Children = append(p.Children, &DOMNode{Truncated: true, RemainingSiblings: remaining})
		},
	)
	return clone, visited, truncated
}

func cloneTree(n *DOMNode) *DOMNode {
	if n == nil {
		return nil
	}
	cp := *n
	cp.Children = make([]*DOMNode, len(n.Children))
	for i, c := range n.Children {
		cp.Children[i] = cloneTree(c)
	}
	return &cp
}
