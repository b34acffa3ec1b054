package server

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
)

// originPolicy is the compiled form of Config.AllowedOrigins.
type originPolicy struct {
	any     bool
	origins map[string]struct{}
	list    []string
}

func newOriginPolicy(configured []string) originPolicy {
	p := originPolicy{origins: make(map[string]struct{}, len(configured))}

	for _, raw := range configured {
		entry := strings.TrimSpace(raw)
		switch entry {
		case "":
			continue
		case "*":
			p.any = true
			continue
		}

		origin, ok := canonicalOrigin(entry)
		if !ok {
			log.Warn().Str("origin", raw).Msg("ignoring invalid origin in configuration")
			continue
		}
		if _, dup := p.origins[origin]; dup {
			continue
		}
		p.origins[origin] = struct{}{}
		p.list = append(p.list, origin)
	}

	return p
}

// allows reports whether the Origin header value is acceptable. An empty or
// unparsable header never is, even under a wildcard.
func (p originPolicy) allows(header string) bool {
	if header == "" {
		return false
	}
	origin, ok := canonicalOrigin(header)
	if !ok {
		return false
	}
	if p.any {
		return true
	}
	_, ok = p.origins[origin]
	return ok
}

// canonicalOrigin reduces an origin to lower-case scheme://host[:port].
func canonicalOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}

// checkOrigin is the upgrader's origin hook.
func checkOrigin(r *http.Request) bool {
	header := r.Header.Get("Origin")

	configMu.RLock()
	ok := activeOrigins.allows(header)
	configMu.RUnlock()

	if !ok {
		log.Warn().
			Str("origin", header).
			Str("addr", r.RemoteAddr).
			Msg("rejected websocket upgrade from disallowed origin")
	}
	return ok
}
