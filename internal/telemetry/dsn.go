package telemetry

import (
	"net/url"
	"strings"
)

// withSearchPath sets the libpq "search_path" run-time parameter so every
// new connection of the pool starts in schema. Keyword/value DSNs get the
// parameter appended, URL DSNs get it as a query parameter.
func withSearchPath(dsn, schema string) string {
	if schema == "" {
		return dsn
	}
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return dsn
		}
		q := u.Query()
		q.Set("search_path", schema)
		u.RawQuery = q.Encode()
		return u.String()
	}
	return strings.TrimSpace(dsn) + " search_path=" + schema
}
