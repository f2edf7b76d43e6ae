package pool

import (
	"fmt"
	"net/url"
	"strings"
)

// mysqlDSN converts a mysql:// URL into the go-sql-driver/mysql DSN form
// "user:pass@tcp(host:port)/db?params".
func mysqlDSN(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid mysql URL: %w", err)
	}

	var userinfo string
	if u.User != nil {
		userinfo = u.User.String() + "@"
	}

	host := u.Host
	if host == "" {
		host = "127.0.0.1:3306"
	}

	db := strings.TrimPrefix(u.Path, "/")

	dsn := fmt.Sprintf("%stcp(%s)/%s", userinfo, host, db)
	if u.RawQuery != "" {
		dsn += "?" + u.RawQuery
	}
	return dsn, nil
}
