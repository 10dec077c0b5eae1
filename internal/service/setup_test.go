package service

import (
	"io"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/feedback-api/internal/database"
	"github.com/noah-isme/feedback-api/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

type testServices struct {
	db       *gorm.DB
	forms    repository.FormRepository
	feedback repository.FeedbackRepository
	users    repository.UserRepository
	validate *validator.Validate
}

func setupServiceDB(t *testing.T) testServices {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	database.EnsureIndexes(db, testLogger())

	return testServices{
		db:       db,
		forms:    repository.NewFormRepository(db),
		feedback: repository.NewFeedbackRepository(db),
		users:    repository.NewUserRepository(db),
		validate: validator.New(),
	}
}

func testLinks(formID string) string {
	return "http://localhost:3000/#/student/" + formID
}
