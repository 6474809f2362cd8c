package apiclient

import "strings"

type Target int

const (
	TargetPassthrough Target = iota
	TargetAuth
	TargetLocal
	TargetTickets
)

func (t Target) String() string {
	switch t {
	case TargetPassthrough:
		return "passthrough"
	case TargetAuth:
		return "auth"
	case TargetLocal:
		return "local"
	case TargetTickets:
		return "tickets"
	default:
		return "unknown"
	}
}

const (
	AuthNamespace  = "/api/auth"
	AdminNamespace = "/admin"
	LocalPrefix    = "/api"
	// LocalAdminPrefix is what admin-namespace paths become once rewritten.
	// Matching on it, rather than on the bare LocalPrefix, keeps tickets
	// service paths such as /api/v1/... routed upstream.
	LocalAdminPrefix = LocalPrefix + AdminNamespace
)

// Rule is one step of the routing table. Rules are evaluated top-down and
// the first match wins. Rewrite is applied to the path before the target's
// base URL is prepended; nil leaves the path unchanged.
type Rule struct {
	Name    string
	Match   func(path string) bool
	Target  Target
	Rewrite func(path string) string
}

func DefaultRules() []Rule {
	return []Rule{
		absoluteURLRule(),
		authNamespaceRule(),
		{
			Name:   "local-proxy",
			Match:  func(path string) bool { return hasSegmentPrefix(path, LocalAdminPrefix) },
			Target: TargetLocal,
		},
		{
			Name:    "admin-namespace",
			Match:   func(path string) bool { return hasSegmentPrefix(path, AdminNamespace) },
			Target:  TargetLocal,
			Rewrite: func(path string) string { return LocalPrefix + path },
		},
		ticketsFallbackRule(),
	}
}

// UpstreamRules drop the local proxy hop: admin namespace paths go straight
// to the tickets service. The proxy itself routes with them.
func UpstreamRules() []Rule {
	return []Rule{
		absoluteURLRule(),
		authNamespaceRule(),
		ticketsFallbackRule(),
	}
}

func absoluteURLRule() Rule {
	return Rule{Name: "absolute-url", Match: isAbsoluteURL, Target: TargetPassthrough}
}

func authNamespaceRule() Rule {
	return Rule{
		Name:   "auth-namespace",
		Match:  func(path string) bool { return hasSegmentPrefix(path, AuthNamespace) },
		Target: TargetAuth,
	}
}

func ticketsFallbackRule() Rule {
	return Rule{Name: "tickets-fallback", Match: func(string) bool { return true }, Target: TargetTickets}
}

type Router struct {
	authBaseURL    string
	ticketsBaseURL string
	rules          []Rule
}

func NewRouter(authBaseURL, ticketsBaseURL string, rules ...Rule) *Router {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Router{
		authBaseURL:    strings.TrimRight(strings.TrimSpace(authBaseURL), "/"),
		ticketsBaseURL: strings.TrimRight(strings.TrimSpace(ticketsBaseURL), "/"),
		rules:          rules,
	}
}

// Resolve maps a request path to the URL the client will call. Local
// results stay relative; the client dials them against its own base URL.
func (r *Router) Resolve(path string) string {
	_, resolved := r.Route(path)
	return resolved
}

func (r *Router) Route(path string) (Target, string) {
	for _, rule := range r.rules {
		if rule.Match == nil || !rule.Match(path) {
			continue
		}
		rewritten := path
		if rule.Rewrite != nil {
			rewritten = rule.Rewrite(path)
		}
		switch rule.Target {
		case TargetAuth:
			return rule.Target, r.authBaseURL + ensureLeadingSlash(rewritten)
		case TargetTickets:
			return rule.Target, r.ticketsBaseURL + ensureLeadingSlash(rewritten)
		default:
			return rule.Target, rewritten
		}
	}
	return TargetTickets, r.ticketsBaseURL + ensureLeadingSlash(path)
}

func isAbsoluteURL(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// hasSegmentPrefix matches prefix only on a path-segment boundary, so
// /admin matches /admin and /admin/x but not /administrators.
func hasSegmentPrefix(path, prefix string) bool {
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	if len(path) == len(prefix) {
		return true
	}
	switch path[len(prefix)] {
	case '/', '?', '#':
		return true
	default:
		return false
	}
}

func ensureLeadingSlash(path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "/"
	}
	if strings.HasPrefix(trimmed, "/") {
		return trimmed
	}
	return "/" + trimmed
}
