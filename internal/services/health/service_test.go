package health

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckWithoutDatabase(t *testing.T) {
	svc := &Service{AgentMode: "local", Products: func() int { return 5 }, Sessions: func() int { return 2 }}
	st := svc.Check(context.Background())
	assert.True(t, st.OK)
	assert.Equal(t, "memory", st.Database)
	assert.Equal(t, 5, st.Products)
	assert.Equal(t, 2, st.Sessions)
}

func TestCheckPingsDatabase(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing()
	st := (&Service{DB: db}).Check(context.Background())
	assert.True(t, st.OK)
	assert.Equal(t, "ok", st.Database)

	mock.ExpectPing().WillReturnError(errors.New("down"))
	st = (&Service{DB: db}).Check(context.Background())
	assert.False(t, st.OK)
	assert.Equal(t, "unreachable", st.Database)
	require.NoError(t, mock.ExpectationsWereMet())
}
