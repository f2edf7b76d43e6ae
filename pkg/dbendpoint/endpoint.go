// Package dbendpoint implements the DatabaseEndpoint descriptor
// (spec.md §3): URL scheme based kind inference, credential stripping,
// and the dbKey derivation used to key the Connection Pool and Schema
// Registry without ever persisting a credential.
package dbendpoint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
)

// Kind identifies one of the three supported database families.
type Kind string

const (
	KindDocument Kind = "document"
	KindSQLA     Kind = "sqlA" // PostgreSQL-compatible
	KindSQLB     Kind = "sqlB" // MySQL-compatible
)

// ErrUnsupportedEndpoint is returned when a URL scheme cannot be mapped
// to a known Kind and the caller did not supply one explicitly.
type ErrUnsupportedEndpoint struct {
	Scheme string
}

func (e *ErrUnsupportedEndpoint) Error() string {
	return fmt.Sprintf("UnsupportedEndpoint: unrecognized scheme %q", e.Scheme)
}

// Endpoint is the immutable per-request database descriptor.
type Endpoint struct {
	URL  string
	Kind Kind
}

var schemeKinds = map[string]Kind{
	"mongodb":    KindDocument,
	"mongodb+srv": KindDocument,
	"postgres":   KindSQLA,
	"postgresql": KindSQLA,
	"mysql":      KindSQLB,
}

// New builds an Endpoint, inferring Kind from the URL scheme when kind
// is empty. Returns ErrUnsupportedEndpoint for an unrecognized scheme.
func New(rawURL string, kind Kind) (Endpoint, error) {
	if kind != "" {
		return Endpoint{URL: rawURL, Kind: kind}, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return Endpoint{}, fmt.Errorf("BadInput: invalid URL: %w", err)
	}
	inferred, ok := schemeKinds[strings.ToLower(u.Scheme)]
	if !ok {
		return Endpoint{}, &ErrUnsupportedEndpoint{Scheme: u.Scheme}
	}
	return Endpoint{URL: rawURL, Kind: inferred}, nil
}

// StripCredentials returns rawURL with embedded userinfo removed. Used
// before any persistence or logging of a URL (spec.md §3 invariant).
func StripCredentials(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		// Not a parseable URL; scrub conservatively by removing any
		// "user:pass@" prefix textually rather than leak it verbatim.
		if idx := strings.Index(rawURL, "@"); idx != -1 {
			if schemeEnd := strings.Index(rawURL, "://"); schemeEnd != -1 && schemeEnd < idx {
				return rawURL[:schemeEnd+3] + rawURL[idx+1:]
			}
		}
		return rawURL
	}
	u.User = nil
	return u.String()
}

// normalize strips credentials and the query string, producing the
// canonical form hashed into dbKey. Two URLs differing only in
// credentials or query string normalize (and therefore hash) identically
// (spec.md §8 round-trip law).
func normalize(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return StripCredentials(rawURL)
	}
	u.User = nil
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

// Key derives the stable, credential-free dbKey for an endpoint:
// sha256(normalize(url)) combined with kind.
func (e Endpoint) Key() string {
	sum := sha256.Sum256([]byte(normalize(e.URL)))
	return fmt.Sprintf("%s:%s", e.Kind, hex.EncodeToString(sum[:]))
}

// Redacted returns a copy of the endpoint safe to log or persist.
func (e Endpoint) Redacted() Endpoint {
	return Endpoint{URL: StripCredentials(e.URL), Kind: e.Kind}
}
