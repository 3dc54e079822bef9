package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerSeen(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	l, err := NewWithPool(mock, "")
	require.NoError(t, err)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("VAAC_20240115120000_vag.png").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	seen, err := l.Seen(context.Background(), "VAAC_20240115120000_vag.png")
	require.NoError(t, err)
	assert.True(t, seen)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerMarkInsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	l, err := NewWithPool(mock, "alerts_ledger")
	require.NoError(t, err)
	now := time.Unix(1700000000, 0).UTC()
	l.now = func() time.Time { return now }

	mock.ExpectExec("INSERT INTO alerts_ledger").
		WithArgs("VAAC_20240115120000_vag.png", now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, l.Mark(context.Background(), "VAAC_20240115120000_vag.png"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerEnsureSchema(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	l, err := NewWithPool(mock, "")
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS processed_advisories").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	require.NoError(t, l.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerQueryError(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	l, err := NewWithPool(mock, "")
	require.NoError(t, err)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("k").
		WillReturnError(errors.New("connection refused"))

	_, err = l.Seen(context.Background(), "k")
	require.Error(t, err)
}

func TestNewWithPoolValidation(t *testing.T) {
	t.Parallel()

	_, err := NewWithPool(nil, "")
	require.Error(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewWithPool(mock, "bad-name;drop")
	require.Error(t, err)
}

func TestNewRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{})
	require.Error(t, err)
}
