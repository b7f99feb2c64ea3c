package webspider

import (
	"strings"
)

// robotsRules is the subset of robots.txt the spider honors: Disallow and
// Allow prefixes for the wildcard agent and our own agent. The longest
// matching prefix wins, Allow breaking ties, per the de-facto standard.
type robotsRules struct {
	allows    []string
	disallows []string
}

// allowed reports whether a path may be fetched. An empty rule set allows
// everything.
func (r *robotsRules) allowed(path string) bool {
	if path == "" {
		path = "/"
	}

	bestLen, bestAllow := -1, true
	for _, prefix := range r.disallows {
		if prefix != "" && strings.HasPrefix(path, prefix) && len(prefix) > bestLen {
			bestLen, bestAllow = len(prefix), false
		}
	}
	for _, prefix := range r.allows {
		if prefix != "" && strings.HasPrefix(path, prefix) && len(prefix) >= bestLen {
			bestLen, bestAllow = len(prefix), true
		}
	}
	return bestAllow
}

// parseRobots extracts the rules that apply to this spider: the wildcard
// group plus any group naming our agent.
func parseRobots(body string) *robotsRules {
	rules := &robotsRules{}
	applies := false

	for _, line := range strings.Split(body, "\n") {
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = line[:idx]
		}
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "user-agent":
			agent := strings.ToLower(value)
			applies = agent == "*" || strings.Contains(userAgent, agent)
		case "disallow":
			if applies {
				rules.disallows = append(rules.disallows, value)
			}
		case "allow":
			if applies {
				rules.allows = append(rules.allows, value)
			}
		}
	}
	return rules
}
