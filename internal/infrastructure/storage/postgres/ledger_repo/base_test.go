package ledger_repo

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estateledger/internal/core/apperror"
	"estateledger/internal/core/id"
	"estateledger/internal/core/types"
	"estateledger/internal/domain/contract"
	"estateledger/internal/domain/safe"
)

func TestTable_Columns(t *testing.T) {
	tbl := newTable[safe.Safe, *safe.Safe](nil, "safes", "safe")
	assert.Equal(t, []string{
		"id", "deletion_mark", "deleted_at", "version", "created_at", "updated_at", "name", "balance",
	}, tbl.selectCols)
}

func TestTable_UpdateQuery(t *testing.T) {
	tbl := newTable[contract.Contract, *contract.Contract](nil, "contracts", "contract")
	c := contract.NewContract(id.New(), id.New(), time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), types.MustMoney("1000"))
	c.Version = 3

	sql, args, err := tbl.updateQuery(c).ToSql()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(sql, "UPDATE contracts SET "))
	assert.Contains(t, sql, "version = version + 1 WHERE id = $")
	assert.True(t, strings.HasSuffix(sql, fmt.Sprintf("AND version = $%d", len(args))))
	assert.NotContains(t, sql, "created_at =")
	// squirrel runs driver.Valuer on Eq args, so ids arrive as strings.
	assert.Equal(t, c.ID.String(), args[len(args)-2])
	assert.Equal(t, 3, args[len(args)-1])
}

func TestTable_MarkDeletedQuery(t *testing.T) {
	tbl := newTable[safe.Voucher, *safe.Voucher](nil, "vouchers", "voucher")
	at := time.Now().UTC()
	rowID := id.New()

	sql, args, err := tbl.markDeletedQuery(rowID, at).ToSql()
	require.NoError(t, err)
	assert.Equal(t,
		"UPDATE vouchers SET deletion_mark = $1, deleted_at = $2, updated_at = $3, version = version + 1 WHERE id = $4",
		sql)
	assert.Equal(t, []any{true, at, at, rowID.String()}, args)
}

func TestInstallmentQueries(t *testing.T) {
	unitID := id.New()
	at := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	sql, args, err := softDeleteByUnitQuery(unitID, at).ToSql()
	require.NoError(t, err)
	assert.Equal(t,
		"UPDATE installments SET deletion_mark = $1, deleted_at = $2, updated_at = $3, version = version + 1 "+
			"WHERE deletion_mark = $4 AND unit_id = $5",
		sql)
	assert.Equal(t, []any{true, at, at, false, unitID.String()}, args)

	sql, _, err = markOverdueQuery(at).ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "SET status = $1")
	assert.Contains(t, sql, "WHERE deletion_mark = $3 AND status = $4 AND due_date < $5")
}

func TestSumQuery(t *testing.T) {
	partnerID := id.New()
	to := time.Date(2026, 3, 31, 15, 0, 0, 0, time.UTC)

	sql, args, err := sumQuery(partnerID, time.Time{}, to).ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "FILTER (WHERE type = 'income')")
	assert.Contains(t, sql, "transaction_date <= $3")
	assert.NotContains(t, sql, ">=")
	assert.Equal(t, time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC), args[2])

	sql, args, err = sumQuery(partnerID, to.AddDate(0, -1, 0), to).ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "transaction_date >= $4")
	assert.Len(t, args, 4)
}

func TestOutstandingQuery(t *testing.T) {
	brokerID := id.New()
	sql, args, err := outstandingQuery(brokerID).ToSql()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT COALESCE(SUM(amount), 0) FROM broker_dues WHERE broker_id = $1 AND deletion_mark = $2 AND status = $3",
		sql)
	assert.Len(t, args, 3)
}

func TestCopyValue(t *testing.T) {
	v := copyValue(types.MustMoney("1234.56"))
	n, ok := v.(pgtype.Numeric)
	require.True(t, ok)
	assert.Equal(t, int64(123456), n.Int.Int64())
	assert.Equal(t, int32(-2), n.Exp)
	assert.True(t, n.Valid)

	assert.Equal(t, "x", copyValue("x"))
}

func TestWriteError(t *testing.T) {
	tbl := newTable[safe.Safe, *safe.Safe](nil, "safes", "safe")

	err := tbl.writeError("insert", &pgconn.PgError{Code: "23505", ConstraintName: "safes_name_uq"})
	assert.True(t, apperror.HasCode(err, apperror.CodeDuplicate))

	err = tbl.writeError("insert", &pgconn.PgError{Code: "23503"})
	assert.False(t, apperror.HasCode(err, apperror.CodeDuplicate))
	assert.Contains(t, err.Error(), "insert safes")
}
