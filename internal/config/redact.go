package config

import (
	"net/url"
	"strings"
)

// RedactURL replaces the password in a connection URL with "***".
// Strings that are not URLs with a password, such as SQLite paths, are
// returned unchanged.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}

	if _, hasPassword := u.User.Password(); !hasPassword {
		return raw
	}

	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return raw
	}

	authority := rest
	if end := strings.IndexAny(rest, "/?#"); end >= 0 {
		authority = rest[:end]
	}

	at := strings.LastIndex(authority, "@")
	if at < 0 {
		return raw
	}

	user, _, _ := strings.Cut(rest[:at], ":")

	return scheme + "://" + user + ":***" + rest[at:]
}
