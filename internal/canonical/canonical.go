// Package canonical turns raw, user-supplied URLs into the canonical string
// used as the deduplication key.
//
// Canonicalize is pure and total: the same input always yields the same
// output and it never fails. Input that cannot be parsed is returned trimmed,
// non-web schemes pass through after parse normalization, and http(s) URLs
// are normalized as follows:
//
//   - host lowercased (Unicode hosts converted to punycode)
//   - default port (80/443) removed
//   - path decoded, dot segments resolved, "//" runs collapsed, trailing "/" removed
//   - tracking parameters dropped, remaining pairs sorted by key then value
//   - empty fragment dropped
package canonical

import (
	"net"
	"net/url"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/net/idna"
)

// trackingParams are query keys removed from http(s) URLs.
var trackingParams = map[string]struct{}{
	"utm_source":   {},
	"utm_medium":   {},
	"utm_campaign": {},
	"utm_term":     {},
	"utm_content":  {},
	"gclid":        {},
	"gbraid":       {},
	"wbraid":       {},
	"fbclid":       {},
}

// schemePrefix matches input that names its own scheme.
var schemePrefix = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.-]*://`)

var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
}

// IsTrackingParam reports whether key is stripped from canonical URLs.
func IsTrackingParam(key string) bool {
	_, ok := trackingParams[key]
	return ok
}

// Canonicalize returns the canonical form of raw.
func Canonicalize(raw string) string {
	trimmed := strings.TrimSpace(raw)

	u, ok := parse(trimmed)
	if !ok {
		return trimmed
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return u.String()
	}
	if u.Host == "" {
		return trimmed
	}

	u.Host = normalizeHost(u.Scheme, u.Hostname(), u.Port())
	u.Path = normalizePath(u.Path)
	u.RawPath = ""
	u.RawQuery = normalizeQuery(u.RawQuery)
	u.ForceQuery = false
	if u.Fragment == "#" {
		u.Fragment = ""
		u.RawFragment = ""
	}

	return u.String()
}

// parse accepts absolute URLs, retrying protocol-less input as https.
// Input carrying its own scheme:// is never retried.
func parse(s string) (*url.URL, bool) {
	if s == "" {
		return nil, false
	}
	if u, err := url.Parse(s); err == nil && u.IsAbs() {
		return u, true
	}
	if schemePrefix.MatchString(s) {
		return nil, false
	}
	u, err := url.Parse("https://" + s)
	if err != nil || u.Host == "" {
		return nil, false
	}
	return u, true
}

func normalizeHost(scheme, hostname, port string) string {
	host := strings.ToLower(hostname)
	if !isASCII(host) {
		if ascii, err := idna.Lookup.ToASCII(host); err == nil {
			host = ascii
		}
	}
	port = normalizePort(scheme, port)
	if port != "" {
		return net.JoinHostPort(host, port)
	}
	if strings.Contains(host, ":") {
		return "[" + host + "]"
	}
	return host
}

// normalizePort compares ports numerically, so ":0443" is the https default.
func normalizePort(scheme, port string) string {
	if port == "" {
		return ""
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return port
	}
	port = strconv.Itoa(n)
	if port == defaultPorts[scheme] {
		return ""
	}
	return port
}

// normalizePath works on the decoded path. path.Clean resolves dot segments,
// collapses repeated slashes and drops the trailing slash except at root.
func normalizePath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

type queryPair struct {
	key   string
	value string
}

func normalizeQuery(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}

	pairs := make([]queryPair, 0, strings.Count(rawQuery, "&")+1)
	for _, part := range strings.Split(rawQuery, "&") {
		if part == "" {
			continue
		}
		k, v, _ := strings.Cut(part, "=")
		k = unescapeQueryComponent(k)
		v = unescapeQueryComponent(v)
		if IsTrackingParam(k) {
			continue
		}
		pairs = append(pairs, queryPair{key: k, value: v})
	}
	if len(pairs) == 0 {
		return ""
	}

	sort.SliceStable(pairs, func(i, j int) bool {
		if pairs[i].key != pairs[j].key {
			return pairs[i].key < pairs[j].key
		}
		return pairs[i].value < pairs[j].value
	})

	var b strings.Builder
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.value))
	}
	return b.String()
}

// unescapeQueryComponent decodes s, keeping malformed escapes literally.
func unescapeQueryComponent(s string) string {
	if d, err := url.QueryUnescape(s); err == nil {
		return d
	}
	return s
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
