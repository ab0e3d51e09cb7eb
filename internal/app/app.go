// Package app assembles the ledger components over one shared database.
package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ydacademy/courseledger/internal/access"
	accesssqlite "github.com/ydacademy/courseledger/internal/access/storage/sqlite"
	"github.com/ydacademy/courseledger/internal/market"
	marketsqlite "github.com/ydacademy/courseledger/internal/market/storage/sqlite"
	"github.com/ydacademy/courseledger/internal/platform/storage/sqlitedb"
	"github.com/ydacademy/courseledger/internal/telemetry"
	telemetrysqlite "github.com/ydacademy/courseledger/internal/telemetry/sqlite"
	"github.com/ydacademy/courseledger/internal/token"
	tokensqlite "github.com/ydacademy/courseledger/internal/token/storage/sqlite"
)

// App wires the ledger services over a single SQLite database.
type App struct {
	DB        *sqlitedb.DB
	Admins    *accesssqlite.Store
	Authority *access.Authority
	Tokens    *token.Service
	Market    *market.Service
	Journal   *telemetrysqlite.Store
	MarketDB  *marketsqlite.Store
}

// Open opens the ledger database at path, creating parent directories, and
// wires the services.
func Open(path string) (*App, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	db, err := sqlitedb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ledger db: %w", err)
	}

	admins := accesssqlite.New(db)
	authority := access.NewAuthority(admins)
	journal := telemetrysqlite.New(db)
	emitter := telemetry.NewEmitter(journal)
	tokens := token.NewService(db, tokensqlite.New(db), authority, emitter)
	marketStore := marketsqlite.New(db)
	marketSvc := market.NewService(db, marketStore, tokens, authority, emitter)

	return &App{
		DB:        db,
		Admins:    admins,
		Authority: authority,
		Tokens:    tokens,
		Market:    marketSvc,
		Journal:   journal,
		MarketDB:  marketStore,
	}, nil
}

// Close releases the database handle.
func (a *App) Close() error {
	if a == nil || a.DB == nil {
		return nil
	}
	return a.DB.Close()
}
