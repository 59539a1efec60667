package analytics

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AmPepSoc/analytics-go/internal/domain/analytics"
)

var experimentTestColumns = []string{
	"id", "name", "description", "is_active", "start_date", "end_date",
	"traffic_allocation", "variants", "primary_goal", "secondary_goals",
	"total_participants", "conversions",
}

func TestExperimentRepositoryFindByName(t *testing.T) {
	db, mock := newTestDB(t)
	repo := NewSQLExperimentRepository(db, newTestLogger(t))

	rows := sqlmock.NewRows(experimentTestColumns).
		AddRow("t1", "cta-color", "", true, nil, nil, 1.0,
			`{"control":{},"variant":{"color":"green"}}`, "signup", `["newsletter"]`, 12, `{}`)

	mock.ExpectQuery("SELECT (.+) FROM ab_tests WHERE name").
		WithArgs("cta-color").
		WillReturnRows(rows)

	test, err := repo.FindByName("cta-color")
	require.NoError(t, err)
	assert.Equal(t, "t1", test.ID)
	assert.Equal(t, []string{"newsletter"}, test.SecondaryGoals)
	assert.Contains(t, test.Variants, "control")
	assert.Contains(t, test.Variants, "variant")
}

func TestExperimentRepositoryFindByNameNotFound(t *testing.T) {
	db, mock := newTestDB(t)
	repo := NewSQLExperimentRepository(db, newTestLogger(t))

	mock.ExpectQuery("SELECT (.+) FROM ab_tests WHERE name").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(experimentTestColumns))

	_, err := repo.FindByName("missing")
	assert.ErrorIs(t, err, ErrExperimentNotFound)
}

func TestExperimentRepositoryFindParticipationNotFound(t *testing.T) {
	db, mock := newTestDB(t)
	repo := NewSQLExperimentRepository(db, newTestLogger(t))

	mock.ExpectQuery("SELECT (.+) FROM ab_test_participations").
		WithArgs("t1", "s1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.FindParticipation("t1", "s1")
	assert.ErrorIs(t, err, ErrParticipationNotFound)
}

func TestExperimentRepositoryInsertParticipationUniqueViolation(t *testing.T) {
	db, mock := newTestDB(t)
	repo := NewSQLExperimentRepository(db, newTestLogger(t))

	mock.ExpectExec("INSERT INTO ab_test_participations").
		WillReturnError(errors.New("UNIQUE constraint failed: ab_test_participations.test_id"))

	p := &analytics.Participation{
		ID:         "p1",
		TestID:     "t1",
		SessionID:  "s1",
		Variant:    "control",
		AssignedAt: time.Now().UTC(),
	}
	err := repo.InsertParticipation(p)
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))
}

func TestMarkParticipationConvertedReportsWinner(t *testing.T) {
	db, mock := newTestDB(t)
	repo := NewSQLExperimentRepository(db, newTestLogger(t))

	convertedAt := time.Now().UTC()
	p := &analytics.Participation{ID: "p1", ConversionGoal: "signup", ConvertedAt: &convertedAt}

	mock.ExpectExec("UPDATE ab_test_participations").
		WillReturnResult(sqlmock.NewResult(0, 1))
	won, err := repo.MarkParticipationConverted(p)
	require.NoError(t, err)
	assert.True(t, won)

	// A second attempt matches no rows because converted is already 1.
	mock.ExpectExec("UPDATE ab_test_participations").
		WillReturnResult(sqlmock.NewResult(0, 0))
	won, err = repo.MarkParticipationConverted(p)
	require.NoError(t, err)
	assert.False(t, won)
}

func TestExperimentRepositoryResults(t *testing.T) {
	db, mock := newTestDB(t)
	repo := NewSQLExperimentRepository(db, newTestLogger(t))

	rows := sqlmock.NewRows([]string{"variant", "participants", "conversions"}).
		AddRow("control", 40, 4).
		AddRow("variant", 50, 10)

	mock.ExpectQuery("SELECT variant, COUNT").
		WithArgs("t1").
		WillReturnRows(rows)

	results, err := repo.Results("t1")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 10.0, results[0].ConversionRate)
	assert.Equal(t, 20.0, results[1].ConversionRate)
}
