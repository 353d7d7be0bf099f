package db

import (
	"context"
	"database/sql"
	"embed"

	libdb "kioskpos/backend/libs/db"
)

//go:embed migrations/*.sql
var migrations embed.FS

// NewPostgres connects to Postgres using the shared helper and brings the schema up to date.
func NewPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	sqlDB, err := libdb.NewPostgresDB(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := libdb.Migrate(sqlDB, migrations, "migrations"); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return sqlDB, nil
}
