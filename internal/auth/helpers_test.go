package auth

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pliu/roomlet/internal/store/sqlstore"
)

func testStore(t *testing.T) *sqlstore.SQLStore {
	t.Helper()
	s, err := sqlstore.New("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testCredentials(t *testing.T, s *sqlstore.SQLStore) *Credentials {
	t.Helper()
	return NewCredentials(s, zap.NewNop())
}
