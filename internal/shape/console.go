package shape

import (
	"strings"
	"time"
)

// ConsoleFilter is the set of optional, ANDed filters over a console
// message sequence (spec §4.C Console messages).
type ConsoleFilter struct {
	Levels     []string // default {error, warn} if nil
	SearchTerm string
	Since      *time.Time
}

// DefaultConsoleLevels is applied when a caller specifies no levels.
var DefaultConsoleLevels = []string{"error", "warn"}

// FilterConsole applies f to messages, preserving input order. Composing
// two filters sequentially yields the same result as ANDing their
// predicates in one pass (spec §8 property 6: filter composition).
func FilterConsole(messages []ConsoleMessage, f ConsoleFilter) []ConsoleMessage {
	levels := f.Levels
	if len(levels) == 0 {
		levels = DefaultConsoleLevels
	}
	levelSet := make(map[string]struct{}, len(levels))
	for _, l := range levels {
		levelSet[strings.ToLower(l)] = struct{}{}
	}

	search := strings.ToLower(f.SearchTerm)

	out := make([]ConsoleMessage, 0, len(messages))
	for _, m := range messages {
		if _, ok := levelSet[strings.ToLower(m.Level)]; !ok {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(m.Text), search) {
			continue
		}
		if f.Since != nil && m.Timestamp.Before(*f.Since) {
			continue
		}
		out = append(out, m)
	}
	return out
}
