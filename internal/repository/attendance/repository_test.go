package attendance

import (
	"context"
	"errors"
	"testing"

	"teamsync/internal/models"
	"teamsync/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMockRepo(t *testing.T) (repository.AttendanceRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewAttendanceRepository(sqlx.NewDb(db, "sqlmock"), zap.NewNop()), mock
}

func batchRecord(status models.AttendanceStatus) repository.BatchRecord {
	return repository.BatchRecord{
		EventID:    uuid.New(),
		PlayerID:   uuid.New(),
		TeamID:     uuid.New(),
		Status:     status,
		RecordedBy: uuid.New(),
	}
}

func expectAttendanceUpsert(mock sqlmock.Sqlmock) {
	mock.ExpectExec(`INSERT INTO club.attendance`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`SELECT pg_notify`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`^RELEASE SAVEPOINT rec_0$`).WillReturnResult(sqlmock.NewResult(0, 0))
}

// Re-saving the same status writes no ledger entry but still refreshes
// the attendance row and reports the current balance.
func TestSaveBatchSameStatusKeepsBalance(t *testing.T) {
	repo, mock := newMockRepo(t)
	rec := batchRecord(models.StatusPresent)

	mock.ExpectBegin()
	mock.ExpectExec(`^SAVEPOINT rec_0$`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT status FROM club.attendance`).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("present"))
	mock.ExpectQuery(`LEFT JOIN club.ledger_entries`).
		WillReturnRows(sqlmock.NewRows([]string{"remaining"}).AddRow(2))
	expectAttendanceUpsert(mock)
	mock.ExpectCommit()

	results, err := repo.SaveBatch(context.Background(), []repository.BatchRecord{rec})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	require.True(t, results[0].Applied)
	require.False(t, results[0].Credited)
	require.Equal(t, 2, results[0].Remaining)
	require.NoError(t, mock.ExpectationsWereMet())
}

// A failed balance lookup must not fail the save; the attendance row is
// the thing being recorded, the balance is advisory.
func TestSaveBatchBalanceLookupFailureDoesNotFailSave(t *testing.T) {
	repo, mock := newMockRepo(t)
	rec := batchRecord(models.StatusPresent)

	mock.ExpectBegin()
	mock.ExpectExec(`^SAVEPOINT rec_0$`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT status FROM club.attendance`).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("present"))
	mock.ExpectQuery(`LEFT JOIN club.ledger_entries`).
		WillReturnError(errors.New("statement timeout"))
	expectAttendanceUpsert(mock)
	mock.ExpectCommit()

	results, err := repo.SaveBatch(context.Background(), []repository.BatchRecord{rec})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	require.True(t, results[0].Applied)
	require.Zero(t, results[0].Remaining)
	require.NoError(t, mock.ExpectationsWereMet())
}

// A player without an active membership is rejected inside their own
// savepoint and the batch still commits.
func TestSaveBatchNoActiveMembershipRollsBackRecord(t *testing.T) {
	repo, mock := newMockRepo(t)
	rec := batchRecord(models.StatusPresent)

	mock.ExpectBegin()
	mock.ExpectExec(`^SAVEPOINT rec_0$`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT status FROM club.attendance`).
		WillReturnRows(sqlmock.NewRows([]string{"status"}))
	mock.ExpectQuery(`SELECT id FROM club.memberships`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(`^ROLLBACK TO SAVEPOINT rec_0$`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	results, err := repo.SaveBatch(context.Background(), []repository.BatchRecord{rec})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.ErrorIs(t, results[0].Err, repository.ErrNoActiveMembership)
	require.False(t, results[0].Applied)
	require.NoError(t, mock.ExpectationsWereMet())
}
