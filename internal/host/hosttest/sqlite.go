package hosttest

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/graceinfra/ibmisteps/internal/host"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
)

// Catalog is a file-backed SQLite database with the QSYS2 and SYSTOOLS schemas
// attached on every connection, standing in for the host catalog.
type Catalog struct {
	driver string
	main   string
	Opens  int
}

// NewCatalog creates the databases under t.TempDir and runs setup statements.
func NewCatalog(t testing.TB, setup ...string) *Catalog {
	t.Helper()
	dir := t.TempDir()
	qsys2 := filepath.Join(dir, "qsys2.db")
	systools := filepath.Join(dir, "systools.db")

	c := &Catalog{
		driver: "sqlite3_ibmi_" + uuid.NewString(),
		main:   filepath.Join(dir, "main.db"),
	}
	sql.Register(c.driver, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			if _, err := conn.Exec(fmt.Sprintf("ATTACH DATABASE '%s' AS QSYS2", qsys2), nil); err != nil {
				return err
			}
			_, err := conn.Exec(fmt.Sprintf("ATTACH DATABASE '%s' AS SYSTOOLS", systools), nil)
			return err
		},
	})

	db, err := sqlx.Open(c.driver, c.main)
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	defer db.Close()
	for _, stmt := range setup {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("catalog setup %q: %v", stmt, err)
		}
	}
	return c
}

// Open matches the Host.SQLOpener signature.
func (c *Catalog) Open(ctx context.Context, props host.SQLProperties) (*sqlx.DB, error) {
	c.Opens++
	return sqlx.Open(c.driver, c.main)
}
