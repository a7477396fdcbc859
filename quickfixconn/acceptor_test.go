package quickfixconn

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/quickfixgo/quickfix"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bjaus/fixgate"
	"github.com/bjaus/fixgate/templates"
)

const acceptorSettings = `
[DEFAULT]
SocketAcceptPort=0
SenderCompID=EXEC

[SESSION]
BeginString=FIX.4.4
TargetCompID=BANZAI

[SESSION]
BeginString=FIX.4.2
TargetCompID=BANZAI
`

func parseSettings(t *testing.T) *quickfix.Settings {
	t.Helper()
	settings, err := quickfix.ParseSettings(strings.NewReader(acceptorSettings))
	require.NoError(t, err)
	return settings
}

func newTestApp() (*Application, *fixgate.Router) {
	router := fixgate.NewRouter(fixgate.NewCodec(templates.Dictionary()))
	return NewApplication(router, zap.NewNop()), router
}

func TestLoadSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "acceptor.cfg")
	require.NoError(t, os.WriteFile(path, []byte(acceptorSettings), 0o600))

	settings, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Len(t, settings.SessionSettings(), 2)

	_, err = LoadSettings(filepath.Join(t.TempDir(), "missing.cfg"))
	assert.Error(t, err)
}

func TestNewAcceptorRegistersSessions(t *testing.T) {
	for _, kind := range []string{StoreMemory, StoreFile} {
		t.Run(kind, func(t *testing.T) {
			app, router := newTestApp()
			_, err := NewAcceptor(app, parseSettings(t), Store{Kind: kind, DSN: t.TempDir()}, zap.NewNop())
			require.NoError(t, err)

			for _, version := range []string{"FIX.4.4", "FIX.4.2"} {
				info, ok := router.Session(fixgate.SessionID{BeginString: version, SenderCompID: "EXEC", TargetCompID: "BANZAI"})
				require.True(t, ok, version)
				assert.Equal(t, "disconnected", info.State)
			}
		})
	}
}

func TestNewAcceptorSQLStore(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "store.db")
	app, _ := newTestApp()

	_, err := NewAcceptor(app, parseSettings(t), Store{Kind: StoreSQL, DSN: dsn}, zap.NewNop())
	require.NoError(t, err)

	db, err := sql.Open(sqliteDriver, dsn)
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&n))
	assert.Equal(t, 2, n)
}

func TestNewAcceptorUnknownStore(t *testing.T) {
	app, _ := newTestApp()
	_, err := NewAcceptor(app, parseSettings(t), Store{Kind: "redis"}, zap.NewNop())
	assert.ErrorContains(t, err, `unknown message store "redis"`)
}

func TestPrepareSQLiteStore(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "store.db")
	require.NoError(t, PrepareSQLiteStore(dsn))
	require.NoError(t, PrepareSQLiteStore(dsn))

	db, err := sql.Open(sqliteDriver, dsn)
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('sessions', 'messages')`).Scan(&n))
	assert.Equal(t, 2, n)

	assert.Error(t, PrepareSQLiteStore(""))
}
