package shape

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterConsoleDefaultLevels(t *testing.T) {
	msgs := []ConsoleMessage{
		{Level: "error", Text: "boom"},
		{Level: "info", Text: "fine"},
		{Level: "warn", Text: "careful"},
	}
	out := FilterConsole(msgs, ConsoleFilter{})
	require.Len(t, out, 2)
	assert.Equal(t, "error", out[0].Level)
	assert.Equal(t, "warn", out[1].Level)
}

func TestFilterConsoleComposition(t *testing.T) {
	msgs := []ConsoleMessage{
		{Level: "error", Text: "network failed", Timestamp: time.Unix(10, 0)},
		{Level: "error", Text: "ok now", Timestamp: time.Unix(20, 0)},
		{Level: "warn", Text: "network slow", Timestamp: time.Unix(30, 0)},
	}
	since := time.Unix(15, 0)

	// Apply sequentially.
	step1 := FilterConsole(msgs, ConsoleFilter{Levels: []string{"error", "warn"}})
	step2 := FilterConsole(step1, ConsoleFilter{SearchTerm: "network", Since: &since})

	// Apply as one combined filter.
	combined := FilterConsole(msgs, ConsoleFilter{Levels: []string{"error", "warn"}, SearchTerm: "network", Since: &since})

	assert.Equal(t, combined, step2)
}

func TestFilterNetworkFailedFirst(t *testing.T) {
	reqs := []NetworkRequest{
		{Status: 200, URL: "http://a"},
		{Status: 404, URL: "http://b"},
		{Status: 200, URL: "http://c"},
		{Status: 500, URL: "http://d"},
		{Status: 301, URL: "http://e"},
	}
	out := FilterNetwork(reqs, NetworkFilter{})
	require.Len(t, out, 5)
	statuses := make([]int, len(out))
	for i, r := range out {
		statuses[i] = r["status"].(int)
	}
	assert.Equal(t, []int{404, 500, 200, 200, 301}, statuses)
}

func TestFilterNetworkBodyOmitted(t *testing.T) {
	reqs := []NetworkRequest{{Status: 200, URL: "http://a", RequestBody: []byte("secret-payload")}}
	out := FilterNetwork(reqs, NetworkFilter{})
	body, ok := out[0]["requestBody"].(OmittedBody)
	require.True(t, ok)
	assert.True(t, body.Omitted)
	assert.Equal(t, len("secret-payload"), body.OriginalSize)
}

func TestFilterNetworkDomain(t *testing.T) {
	reqs := []NetworkRequest{
		{Status: 200, URL: "https://api.example.com/x"},
		{Status: 200, URL: "https://other.test/y"},
	}
	out := FilterNetwork(reqs, NetworkFilter{Domain: "example.com"})
	require.Len(t, out, 1)
	assert.Equal(t, "https://api.example.com/x", out[0]["url"])
}

func TestFilterDOMSelectorByID(t *testing.T) {
	root := &DOMNode{Tag: "html", Children: []*DOMNode{
		{Tag: "body", Children: []*DOMNode{
			{Tag: "div", Attrs: map[string]string{"id": "main"}, Text: "hello"},
		}},
	}}
	found, _, _, err := FilterDOM(root, DOMFilter{Selector: "#main"})
	require.NoError(t, err)
	assert.Equal(t, "div", found.Tag)
	assert.Equal(t, "hello", found.Text)
}

func TestFilterDOMExcludesScripts(t *testing.T) {
	root := &DOMNode{Tag: "body", Children: []*DOMNode{
		{Tag: "script", Text: "evil()"},
		{Tag: "p", Text: "content"},
	}}
	out, _, _, err := FilterDOM(root, DOMFilter{ExcludeScripts: true})
	require.NoError(t, err)
	require.Len(t, out.Children, 1)
	assert.Equal(t, "p", out.Children[0].Tag)
}

func TestFilterDOMTruncation(t *testing.T) {
	root := &DOMNode{Tag: "ul"}
	for i := 0; i < 10; i++ {
		root.Children = append(root.Children, &DOMNode{Tag: "li"})
	}
	out, visited, truncated, err := FilterDOM(root, DOMFilter{MaxNodes: 3})
	require.NoError(t, err)
	assert.True(t, truncated)
	assert.LessOrEqual(t, visited, 3)
	last := out.Children[len(out.Children)-1]
	assert.True(t, last.Truncated)
}

func TestFilterDOMSelectorNotFound(t *testing.T) {
	root := &DOMNode{Tag: "html"}
	_, _, _, err := FilterDOM(root, DOMFilter{Selector: "#missing"})
	assert.ErrorIs(t, err, ErrSelectorNotFound)
}
