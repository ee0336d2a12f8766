package ratelimit

import "strings"

// MatchEndpoint finds the config governing a request. Exact path matches win
// over prefix matches, and longer prefixes win over shorter ones, so
// "/jobs/{id}/cancel" lands on the "/jobs/" entry rather than "/jobs".
// Returns nil when no entry matches.
func MatchEndpoint(endpoints []EndpointConfig, path, method string) *EndpointConfig {
	var best *EndpointConfig
	bestLen := -1

	for i := range endpoints {
		ep := &endpoints[i]
		if ep.Method != "" && ep.Method != method {
			continue
		}

		if ep.Path == path {
			return ep
		}
		if strings.HasSuffix(ep.Path, "/") && strings.HasPrefix(path, ep.Path) && len(ep.Path) > bestLen {
			best = ep
			bestLen = len(ep.Path)
		}
	}

	return best
}
