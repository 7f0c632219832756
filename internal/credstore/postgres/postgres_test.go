package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/richsynapse/synapsehub-client/internal/credstore"
	"github.com/richsynapse/synapsehub-client/internal/credstore/storetest"
)

func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("SYNAPSE_TEST_DSN")
	if dsn == "" {
		t.Skip("SYNAPSE_TEST_DSN not set")
	}
	return dsn
}

func TestStore(t *testing.T) {
	dsn := testDSN(t)
	storetest.Run(t, func(t *testing.T) credstore.Store {
		// a fresh profile per case keeps runs independent on a shared database
		profile := "test-" + uuid.NewString()
		s, err := New(dsn, profile)
		if err != nil {
			t.Skipf("cannot connect to database: %v", err)
		}
		t.Cleanup(func() {
			_ = s.Clear(context.Background())
			_ = s.Close()
		})
		return s
	})
}

func TestProfilesAreIsolated(t *testing.T) {
	dsn := testDSN(t)
	ctx := context.Background()
	a, err := New(dsn, "a-"+uuid.NewString())
	if err != nil {
		t.Skipf("cannot connect to database: %v", err)
	}
	defer a.Close()
	b, err := New(dsn, "b-"+uuid.NewString())
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, a.Save(ctx, credstore.Session{Token: "only-a"}))
	defer a.Clear(ctx)
	got, err := b.Load(ctx)
	require.NoError(t, err)
	require.Nil(t, got)
}
