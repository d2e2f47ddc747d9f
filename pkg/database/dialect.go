package database

import (
	"fmt"
	"strings"
)

// Dialect captures the few SQL differences between the supported drivers.
type Dialect struct {
	Name   string
	Driver string
	style  placeholderStyle
}

type placeholderStyle int

const (
	atStyle placeholderStyle = iota
	dollarStyle
)

var (
	SQLServer = Dialect{Name: "sqlserver", Driver: "sqlserver", style: atStyle}
	Postgres  = Dialect{Name: "postgres", Driver: "pgx", style: dollarStyle}
)

// DialectFor maps a configured driver name onto a dialect.
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "", "sqlserver", "mssql":
		return SQLServer, nil
	case "pgx", "postgres", "postgresql":
		return Postgres, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Placeholder returns the bind marker for the n-th (1-based) argument.
func (d Dialect) Placeholder(n int) string {
	if d.style == dollarStyle {
		return fmt.Sprintf("$%d", n)
	}
	return fmt.Sprintf("@p%d", n)
}

// Placeholders returns the markers for arguments from..from+count-1.
func (d Dialect) Placeholders(from, count int) []string {
	out := make([]string, count)
	for i := range out {
		out[i] = d.Placeholder(from + i)
	}
	return out
}

// Savepoint returns the statement that marks a savepoint inside the open
// transaction.
func (d Dialect) Savepoint(name string) string {
	if d.style == dollarStyle {
		return "SAVEPOINT " + name
	}
	return "SAVE TRANSACTION " + name
}

// RollbackTo returns the statement that undoes everything after the named
// savepoint while keeping the transaction open.
func (d Dialect) RollbackTo(name string) string {
	if d.style == dollarStyle {
		return "ROLLBACK TO SAVEPOINT " + name
	}
	return "ROLLBACK TRANSACTION " + name
}

// ReleaseSavepoint returns the statement that drops a savepoint, or "" when
// the dialect has none (SQL Server keeps savepoints until commit).
func (d Dialect) ReleaseSavepoint(name string) string {
	if d.style == dollarStyle {
		return "RELEASE SAVEPOINT " + name
	}
	return ""
}
