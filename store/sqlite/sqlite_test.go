package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/store/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func put(name, body string) func(tx generic.DocumentTx) error {
	return func(tx generic.DocumentTx) error {
		tx.Put(name, []byte(body))
		return nil
	}
}

func TestStore_UpdateCommitsTogether(t *testing.T) {
	// GIVEN: An empty store
	store := newTestStore(t)
	ctx := context.Background()

	// WHEN: One update writes requests and users
	err := store.Update(ctx, func(tx generic.DocumentTx) error {
		tx.Put(generic.DocRequests, []byte(`[{"id":"r1","applied":true}]`))
		tx.Put(generic.DocUsers, []byte(`[{"id":"u1","annualLeave":16}]`))
		return nil
	})

	// THEN: Both documents are readable
	require.NoError(t, err)
	reqs, err := store.Load(ctx, generic.DocRequests)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"r1","applied":true}]`, string(reqs))
	users, err := store.Load(ctx, generic.DocUsers)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"u1","annualLeave":16}]`, string(users))
}

func TestStore_UpdateErrorRollsBack(t *testing.T) {
	// GIVEN: Users at 21 days
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Update(ctx, put(generic.DocUsers, `[{"annualLeave":21}]`)))

	// WHEN: An update deducts and then fails before stamping the request
	boom := errors.New("stamp failed")
	err := store.Update(ctx, func(tx generic.DocumentTx) error {
		tx.Put(generic.DocUsers, []byte(`[{"annualLeave":16}]`))
		return boom
	})

	// THEN: The deduction is not visible
	assert.ErrorIs(t, err, boom)
	users, err := store.Load(ctx, generic.DocUsers)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"annualLeave":21}]`, string(users))
}

func TestStore_GetSeesCommittedAndStaged(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Update(ctx, put(generic.DocHolidays, `["2024-12-25"]`)))

	err := store.Update(ctx, func(tx generic.DocumentTx) error {
		body, err := tx.Get(generic.DocHolidays)
		require.NoError(t, err)
		assert.JSONEq(t, `["2024-12-25"]`, string(body))

		tx.Put(generic.DocHolidays, []byte(`["2024-12-26"]`))
		body, err = tx.Get(generic.DocHolidays)
		require.NoError(t, err)
		assert.JSONEq(t, `["2024-12-26"]`, string(body))

		missing, err := tx.Get(generic.DocAudit)
		require.NoError(t, err)
		assert.Nil(t, missing)
		return nil
	})
	require.NoError(t, err)
}

func TestStore_VersionCountsWrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	v, err := store.Version(ctx, generic.DocAudit)
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Update(ctx, put(generic.DocAudit, `[]`)))
	}

	v, err = store.Version(ctx, generic.DocAudit)
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)
}

func TestStore_Reset(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Update(ctx, put(generic.DocUsers, `[]`)))

	require.NoError(t, store.Reset(ctx))

	body, err := store.Load(ctx, generic.DocUsers)
	require.NoError(t, err)
	assert.Nil(t, body)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leave.db")
	ctx := context.Background()

	first, err := sqlite.New(path)
	require.NoError(t, err)
	require.NoError(t, first.Update(ctx, put(generic.DocUsers, `[{"id":"u1"}]`)))
	require.NoError(t, first.Close())

	second, err := sqlite.New(path)
	require.NoError(t, err)
	defer second.Close()

	body, err := second.Load(ctx, generic.DocUsers)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"u1"}]`, string(body))
}
