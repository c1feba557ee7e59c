package sqldb

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
	MySQL    Dialect = "mysql"
)

func ParseDialect(name string) (Dialect, error) {
	switch d := Dialect(strings.ToLower(strings.TrimSpace(name))); d {
	case Postgres, SQLite, MySQL:
		return d, nil
	case "postgresql":
		return Postgres, nil
	default:
		return "", fmt.Errorf("unsupported sql dialect %q", name)
	}
}

func (d Dialect) driverName() string {
	return string(d)
}

// rebind rewrites ? placeholders to $n for postgres. Queries never contain
// literal question marks.
func (d Dialect) rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d Dialect) insertVoteQuery() string {
	if d == MySQL {
		return `INSERT IGNORE INTO votes (poll_id, voter_id, option_index, voted_at) VALUES (?, ?, ?, ?)`
	}
	return `INSERT INTO votes (poll_id, voter_id, option_index, voted_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (poll_id, voter_id) DO NOTHING`
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}
