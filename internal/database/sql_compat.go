package database

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
)

var (
	driverMu sync.RWMutex
	driver   = "mysql"
)

// SetDriver records the active driver so queries can be rewritten for it.
func SetDriver(name string) {
	driverMu.Lock()
	defer driverMu.Unlock()
	driver = strings.ToLower(name)
}

// Driver returns the active database driver name.
func Driver() string {
	driverMu.RLock()
	defer driverMu.RUnlock()
	return driver
}

// IsPostgreSQL returns true if using PostgreSQL.
func IsPostgreSQL() bool {
	return Driver() == "postgres"
}

var (
	placeholderRe  = regexp.MustCompile(`\$\d+`)
	placeholderNum = regexp.MustCompile(`\$(\d+)`)
)

// ConvertPlaceholders converts PostgreSQL placeholders ($1, $2) to ?
// placeholders for MySQL and SQLite. Queries are written in PostgreSQL
// format and rewritten for the active driver.
func ConvertPlaceholders(query string) string {
	if IsPostgreSQL() {
		return query
	}

	result := query
	for _, placeholder := range placeholderRe.FindAllString(query, -1) {
		result = strings.Replace(result, placeholder, "?", 1)
	}

	// ILIKE is PostgreSQL-only; the other drivers compare case-insensitively
	// by default.
	result = strings.ReplaceAll(result, " ILIKE ", " LIKE ")
	result = strings.ReplaceAll(result, " ilike ", " LIKE ")

	return result
}

// RemapArgs expands positional arguments so repeated $n placeholders share
// the same value after conversion to ? placeholders. PostgreSQL keeps the
// original argument list.
func RemapArgs(query string, args []interface{}) []interface{} {
	if IsPostgreSQL() {
		return args
	}

	matches := placeholderNum.FindAllStringSubmatch(query, -1)
	if len(matches) == 0 {
		return args
	}

	expanded := make([]interface{}, len(matches))
	for i, match := range matches {
		idx, err := strconv.Atoi(match[1])
		if err != nil || idx < 1 || idx > len(args) {
			return args
		}
		expanded[i] = args[idx-1]
	}
	return expanded
}
