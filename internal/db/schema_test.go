package db

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const columnCheck = "SELECT COUNT(*) FROM information_schema.columns"

func TestMigrateCreatesEveryTable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	for _, table := range Tables {
		mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS " + table + " (")).
			WillReturnResult(sqlmock.NewResult(0, 0))
	}

	require.NoError(t, Migrate(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateReportsFailingTable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS profiles").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS sessions").WillReturnError(errors.New("denied"))

	err = Migrate(context.Background(), db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sessions")
}

func TestEnsureTriggerWordColumn(t *testing.T) {
	alter := regexp.QuoteMeta(addTriggerWordColumn)

	t.Run("already present", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta(columnCheck)).WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))

		added, err := EnsureTriggerWordColumn(context.Background(), db)
		require.NoError(t, err)
		assert.False(t, added)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("added", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta(columnCheck)).WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
		mock.ExpectExec(alter).WillReturnResult(sqlmock.NewResult(0, 0))

		added, err := EnsureTriggerWordColumn(context.Background(), db)
		require.NoError(t, err)
		assert.True(t, added)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("lookup denied then duplicate column", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta(columnCheck)).WillReturnError(errors.New("access denied"))
		mock.ExpectExec(alter).WillReturnError(&mysql.MySQLError{Number: ErrNumDuplicateColumn, Message: "Duplicate column name 'trigger_word'"})

		added, err := EnsureTriggerWordColumn(context.Background(), db)
		require.NoError(t, err)
		assert.False(t, added)
	})

	t.Run("manual migration required", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta(columnCheck)).WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
		mock.ExpectExec(alter).WillReturnError(&mysql.MySQLError{Number: 1142, Message: "ALTER command denied"})

		added, err := EnsureTriggerWordColumn(context.Background(), db)
		assert.False(t, added)

		var manual *ManualMigrationError
		require.ErrorAs(t, err, &manual)
		assert.Equal(t, addTriggerWordColumn, manual.Statement)
		assert.Contains(t, err.Error(), "run manually")
	})
}

func TestIsDuplicateEntry(t *testing.T) {
	assert.True(t, IsDuplicateEntry(&mysql.MySQLError{Number: ErrNumDuplicateEntry}))
	assert.False(t, IsDuplicateEntry(&mysql.MySQLError{Number: ErrNumDuplicateColumn}))
	assert.False(t, IsDuplicateEntry(errors.New("Duplicate entry")))
	assert.False(t, IsDuplicateEntry(nil))
}
