package quickfixconn

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3"
	"github.com/quickfixgo/quickfix"
	"github.com/quickfixgo/quickfix/config"
	filestore "github.com/quickfixgo/quickfix/store/file"
	sqlstore "github.com/quickfixgo/quickfix/store/sql"
	"go.uber.org/zap"
)

// Message store kinds.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreSQL    = "sql"
)

const (
	sqliteDriver     = "sqlite3"
	defaultFileStore = "fixstore"
)

// Store selects the engine message store. DSN is the directory of the file
// store or the sqlite database of the sql store.
type Store struct {
	Kind string
	DSN  string
}

// LoadSettings parses a quickfix settings file.
func LoadSettings(path string) (*quickfix.Settings, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open quickfix settings: %w", err)
	}
	defer f.Close()

	settings, err := quickfix.ParseSettings(f)
	if err != nil {
		return nil, fmt.Errorf("parse quickfix settings %s: %w", path, err)
	}
	return settings, nil
}

// NewAcceptor creates the engine acceptor. Sessions declared in settings are
// registered with the application's router as they are created.
func NewAcceptor(app *Application, settings *quickfix.Settings, store Store, logger *zap.Logger) (*quickfix.Acceptor, error) {
	factory, err := storeFactory(settings, store)
	if err != nil {
		return nil, err
	}
	acceptor, err := quickfix.NewAcceptor(app, factory, settings, NewLogFactory(logger))
	if err != nil {
		return nil, fmt.Errorf("create acceptor: %w", err)
	}
	return acceptor, nil
}

func storeFactory(settings *quickfix.Settings, store Store) (quickfix.MessageStoreFactory, error) {
	global := settings.GlobalSettings()
	switch store.Kind {
	case StoreMemory, "":
		return quickfix.NewMemoryStoreFactory(), nil
	case StoreFile:
		if !global.HasSetting(config.FileStorePath) {
			path := store.DSN
			if path == "" {
				path = defaultFileStore
			}
			global.Set(config.FileStorePath, path)
		}
		return filestore.NewStoreFactory(settings), nil
	case StoreSQL:
		if err := PrepareSQLiteStore(store.DSN); err != nil {
			return nil, err
		}
		global.Set(config.SQLStoreDriver, sqliteDriver)
		global.Set(config.SQLStoreDataSourceName, store.DSN)
		return sqlstore.NewStoreFactory(settings), nil
	default:
		return nil, fmt.Errorf("unknown message store %q", store.Kind)
	}
}

const sessionColumns = `
	beginstring CHAR(8) NOT NULL,
	sendercompid VARCHAR(64) NOT NULL,
	sendersubid VARCHAR(64) NOT NULL,
	senderlocid VARCHAR(64) NOT NULL,
	targetcompid VARCHAR(64) NOT NULL,
	targetsubid VARCHAR(64) NOT NULL,
	targetlocid VARCHAR(64) NOT NULL,
	session_qualifier VARCHAR(64) NOT NULL,`

const sessionKey = `beginstring, sendercompid, sendersubid, senderlocid,
	targetcompid, targetsubid, targetlocid, session_qualifier`

var storeSchema = []string{
	`CREATE TABLE IF NOT EXISTS sessions (` + sessionColumns + `
	creation_time DATETIME NOT NULL,
	incoming_seqnum INTEGER NOT NULL,
	outgoing_seqnum INTEGER NOT NULL,
	PRIMARY KEY (` + sessionKey + `))`,
	`CREATE TABLE IF NOT EXISTS messages (` + sessionColumns + `
	msgseqnum INTEGER NOT NULL,
	message TEXT NOT NULL,
	PRIMARY KEY (` + sessionKey + `, msgseqnum))`,
}

// PrepareSQLiteStore creates the tables the engine's sql store expects.
func PrepareSQLiteStore(dsn string) error {
	if dsn == "" {
		return fmt.Errorf("sql message store: empty dsn")
	}
	db, err := sql.Open(sqliteDriver, dsn)
	if err != nil {
		return fmt.Errorf("open message store: %w", err)
	}
	defer db.Close()

	for _, stmt := range storeSchema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("create message store schema: %w", err)
		}
	}
	return nil
}
