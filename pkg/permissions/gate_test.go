package permissions

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kardexhq/kardex/pkg/catalog"
)

func gateCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New([]catalog.Descriptor{
		{Code: "ALL_DOCS_OPS", Group: "docs", GrantsAllInGroup: true},
		{Code: "VIEW_FULL_DOCS_LIST", Group: "docs", ViewFlag: catalog.ViewFull},
		{Code: "VIEW_LIMITED_DOCS_LIST", Group: "docs", ViewFlag: catalog.ViewLimited},
		{Code: "EDIT_DOC", Group: "docs"},
	})
	require.NoError(t, err)
	return cat
}

func newMockGate(t *testing.T, cacheTTL time.Duration) (*Gate, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return NewGate(db, gateCatalog(t), nil, cacheTTL, 16), mock, func() { db.Close() }
}

func TestGateUnauthenticated(t *testing.T) {
	gate, mock, cleanup := newMockGate(t, 0)
	defer cleanup()

	err := gate.RequireAny(context.Background(), 0, "EDIT_DOC")
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.False(t, IsForbidden(err))

	err = gate.RequireAll(context.Background(), -3, "EDIT_DOC")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	// no query runs for unidentified callers
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGateUnknownCode(t *testing.T) {
	gate, mock, cleanup := newMockGate(t, 0)
	defer cleanup()

	err := gate.RequireAny(context.Background(), 7, "EDIT_DOC", "NOT_A_CODE")
	assert.ErrorIs(t, err, ErrUnknownCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGateNoCodes(t *testing.T) {
	gate, mock, cleanup := newMockGate(t, 0)
	defer cleanup()

	err := gate.RequireAny(context.Background(), 7)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGateRequireAny(t *testing.T) {
	t.Run("one grant is enough", func(t *testing.T) {
		gate, mock, cleanup := newMockGate(t, 0)
		defer cleanup()

		mock.ExpectQuery(regexp.QuoteMeta("SELECT code")).
			WithArgs(int64(7), pq.Array([]string{"EDIT_DOC", "VIEW_FULL_DOCS_LIST"})).
			WillReturnRows(sqlmock.NewRows([]string{"code"}).AddRow("VIEW_FULL_DOCS_LIST"))

		err := gate.RequireAny(context.Background(), 7, "EDIT_DOC", "VIEW_FULL_DOCS_LIST")
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("denied lists every requested code", func(t *testing.T) {
		gate, mock, cleanup := newMockGate(t, 0)
		defer cleanup()

		mock.ExpectQuery(regexp.QuoteMeta("SELECT code")).
			WithArgs(int64(7), pq.Array([]string{"EDIT_DOC", "VIEW_FULL_DOCS_LIST"})).
			WillReturnRows(sqlmock.NewRows([]string{"code"}))

		err := gate.RequireAny(context.Background(), 7, "EDIT_DOC", "VIEW_FULL_DOCS_LIST")
		require.Error(t, err)
		require.True(t, IsForbidden(err))

		var fe *ForbiddenError
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, int64(7), fe.RoleID)
		assert.Equal(t, []string{"EDIT_DOC", "VIEW_FULL_DOCS_LIST"}, fe.Missing)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGateRequireAll(t *testing.T) {
	t.Run("every grant present", func(t *testing.T) {
		gate, mock, cleanup := newMockGate(t, 0)
		defer cleanup()

		mock.ExpectQuery(regexp.QuoteMeta("SELECT code")).
			WithArgs(int64(7), pq.Array([]string{"EDIT_DOC", "VIEW_LIMITED_DOCS_LIST"})).
			WillReturnRows(sqlmock.NewRows([]string{"code"}).
				AddRow("VIEW_LIMITED_DOCS_LIST").
				AddRow("EDIT_DOC"))

		err := gate.RequireAll(context.Background(), 7, "EDIT_DOC", "VIEW_LIMITED_DOCS_LIST")
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("denial lists only the ungranted codes in request order", func(t *testing.T) {
		gate, mock, cleanup := newMockGate(t, 0)
		defer cleanup()

		mock.ExpectQuery(regexp.QuoteMeta("SELECT code")).
			WithArgs(int64(7), pq.Array([]string{"ALL_DOCS_OPS", "EDIT_DOC", "VIEW_LIMITED_DOCS_LIST"})).
			WillReturnRows(sqlmock.NewRows([]string{"code"}).AddRow("EDIT_DOC"))

		err := gate.RequireAll(context.Background(), 7, "ALL_DOCS_OPS", "EDIT_DOC", "VIEW_LIMITED_DOCS_LIST")
		require.Error(t, err)

		var fe *ForbiddenError
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, []string{"ALL_DOCS_OPS", "VIEW_LIMITED_DOCS_LIST"}, fe.Missing)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGateDecisionCache(t *testing.T) {
	gate, mock, cleanup := newMockGate(t, time.Minute)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT code")).
		WithArgs(int64(7), pq.Array([]string{"EDIT_DOC"})).
		WillReturnRows(sqlmock.NewRows([]string{"code"}).AddRow("EDIT_DOC"))

	require.NoError(t, gate.RequireAny(context.Background(), 7, "EDIT_DOC"))

	// second call is served from cache, no second query expected
	require.NoError(t, gate.RequireAny(context.Background(), 7, "EDIT_DOC"))
	assert.NoError(t, mock.ExpectationsWereMet())

	// invalidation forces a fresh read, which now denies
	gate.InvalidateCache()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT code")).
		WithArgs(int64(7), pq.Array([]string{"EDIT_DOC"})).
		WillReturnRows(sqlmock.NewRows([]string{"code"}))

	err := gate.RequireAny(context.Background(), 7, "EDIT_DOC")
	assert.True(t, IsForbidden(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGateCachedDenialKeepsMissingCodes(t *testing.T) {
	gate, mock, cleanup := newMockGate(t, time.Minute)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT code")).
		WithArgs(int64(7), pq.Array([]string{"EDIT_DOC", "VIEW_FULL_DOCS_LIST"})).
		WillReturnRows(sqlmock.NewRows([]string{"code"}).AddRow("EDIT_DOC"))

	first := gate.RequireAll(context.Background(), 7, "EDIT_DOC", "VIEW_FULL_DOCS_LIST")
	second := gate.RequireAll(context.Background(), 7, "EDIT_DOC", "VIEW_FULL_DOCS_LIST")

	var fe *ForbiddenError
	require.ErrorAs(t, second, &fe)
	assert.Equal(t, []string{"VIEW_FULL_DOCS_LIST"}, fe.Missing)
	assert.Equal(t, first.Error(), second.Error())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGateMutatedDenialLeavesCacheIntact(t *testing.T) {
	gate, mock, cleanup := newMockGate(t, time.Minute)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT code")).
		WithArgs(int64(7), pq.Array([]string{"ALL_DOCS_OPS", "EDIT_DOC"})).
		WillReturnRows(sqlmock.NewRows([]string{"code"}).AddRow("EDIT_DOC"))

	first := gate.RequireAll(context.Background(), 7, "ALL_DOCS_OPS", "EDIT_DOC")

	var fe *ForbiddenError
	require.ErrorAs(t, first, &fe)
	require.Equal(t, []string{"ALL_DOCS_OPS"}, fe.Missing)

	// a caller scribbling on its error must not rewrite the cached decision
	fe.Missing[0] = "EDIT_DOC"

	second := gate.RequireAll(context.Background(), 7, "ALL_DOCS_OPS", "EDIT_DOC")
	require.ErrorAs(t, second, &fe)
	assert.Equal(t, []string{"ALL_DOCS_OPS"}, fe.Missing)
	assert.NoError(t, mock.ExpectationsWereMet())
}
