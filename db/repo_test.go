package db

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"escrim/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm/logger"
)

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	conn, err := Open(sqlite.Open(":memory:"), logger.Silent)
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	// 内存库每个连接都是独立的库
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, Migrate(conn))
	return NewRepo(conn)
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := models.ParseDate(s)
	require.NoError(t, err)
	return time.Time(d)
}

func TestCreatePerson_DuplicateIdentifier(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	p := &models.Person{
		Identifier:   "jdupont",
		FirstName:    "Jean",
		LastName:     "Dupont",
		BirthDate:    models.NewDate(mustDate(t, "1980-05-12")),
		PasswordHash: "hash",
		Role:         models.RoleMedic,
	}
	require.NoError(t, r.CreatePerson(ctx, p))
	assert.NotEmpty(t, p.ID)

	again := *p
	again.ID = ""
	err := r.CreatePerson(ctx, &again)
	assert.ErrorIs(t, err, ErrDuplicate)

	exists, err := r.PersonExists(ctx, "jdupont")
	require.NoError(t, err)
	assert.True(t, exists)

	got, err := r.FindPersonByIdentifier(ctx, "jdupont")
	require.NoError(t, err)
	assert.Equal(t, models.RoleMedic, got.Role)
	assert.Equal(t, "1980-05-12", models.FormatDate(got.BirthDate))

	_, err = r.FindPersonByIdentifier(ctx, "JDUPONT")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPasswordReset(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, r.CreatePerson(ctx, &models.Person{
		Identifier: "mmartin", FirstName: "Marie", LastName: "Martin",
		BirthDate:    models.NewDate(mustDate(t, "1990-01-31")),
		PasswordHash: "old", Role: models.RoleInjured,
	}))

	ok, err := r.VerifyIdentifierAndBirthDate(ctx, "mmartin", models.NewDate(mustDate(t, "1990-02-01")))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = r.VerifyIdentifierAndBirthDate(ctx, "mmartin", models.NewDate(mustDate(t, "1990-01-31")))
	require.NoError(t, err)
	assert.True(t, ok)

	updated, err := r.UpdatePassword(ctx, "mmartin", "new")
	require.NoError(t, err)
	assert.True(t, updated)

	p, err := r.FindPersonByIdentifier(ctx, "mmartin")
	require.NoError(t, err)
	assert.Equal(t, "new", p.PasswordHash)

	updated, err = r.UpdatePassword(ctx, "nobody", "x")
	require.NoError(t, err)
	assert.False(t, updated)
}

func TestTouchPersonLogin(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	p := &models.Person{
		Identifier: "ldurand", FirstName: "Luc", LastName: "Durand",
		BirthDate: models.NewDate(mustDate(t, "1975-03-03")), PasswordHash: "h", Role: models.RoleLogistician,
	}
	require.NoError(t, r.CreatePerson(ctx, p))

	require.NoError(t, r.TouchPersonLogin(ctx, p.ID, "10.0.0.1", "curl"))
	require.NoError(t, r.TouchPersonLogin(ctx, p.ID, "10.0.0.2", "curl"))

	got, err := r.FindPersonByID(ctx, p.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, got.LoginCount)
	assert.Equal(t, "10.0.0.2", got.LastLoginIP)
	assert.NotNil(t, got.LastLoginAt)
}

func TestTruncate_KeepsRuneBoundary(t *testing.T) {
	assert.Equal(t, "é", truncate("éé", 3))
	assert.Equal(t, "", truncate("é", 1))
	assert.Equal(t, "curl", truncate("curl", 255))
	assert.Equal(t, "ab", truncate("abc", 2))
}

func TestTouchPersonLogin_LongUserAgent(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	p := &models.Person{
		Identifier: "mmartin", FirstName: "Marie", LastName: "Martin",
		BirthDate: models.NewDate(mustDate(t, "1980-01-01")), PasswordHash: "h", Role: models.RoleMedic,
	}
	require.NoError(t, r.CreatePerson(ctx, p))

	// 255 字节处正好落在 "é" 中间
	ua := strings.Repeat("é", 200)
	require.NoError(t, r.TouchPersonLogin(ctx, p.ID, "10.0.0.1", ua))

	got, err := r.FindPersonByID(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(got.LastLoginUA))
	assert.Len(t, got.LastLoginUA, 254)
}

func TestAircraftUpdate(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, r.CreateAircraft(ctx, &models.Aircraft{Name: "A400M", Constructor: "Airbus"}))

	ref := &models.IncidentRef{Location: "Lyon", EventDate: models.NewDate(mustDate(t, "2024-06-01"))}
	ok, err := r.UpdateAircraft(ctx, "A400M", models.AircraftOccupied, ref)
	require.NoError(t, err)
	assert.True(t, ok)

	a, err := r.FindAircraft(ctx, "A400M")
	require.NoError(t, err)
	assert.Equal(t, models.AircraftOccupied, a.State)
	require.NotNil(t, a.IncidentLocation)
	assert.Equal(t, "Lyon", *a.IncidentLocation)
	require.NotNil(t, a.IncidentDate)
	assert.Equal(t, "2024-06-01", models.FormatDate(*a.IncidentDate))

	ok, err = r.UpdateAircraft(ctx, "A400M", models.AircraftAvailable, nil)
	require.NoError(t, err)
	assert.True(t, ok)
	a, err = r.FindAircraft(ctx, "A400M")
	require.NoError(t, err)
	assert.Equal(t, models.AircraftAvailable, a.State)
	assert.Nil(t, a.IncidentLocation)
	assert.Nil(t, a.IncidentDate)

	ok, err = r.UpdateAircraft(ctx, "C-130", models.AircraftAvailable, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	list, err := r.ListAircraft(ctx, "a4")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestIncidents(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	day := models.NewDate(mustDate(t, "2024-06-01"))

	require.NoError(t, r.InsertIncident(ctx, &models.Incident{Location: " Lyon ", TotalInjured: 4, RemainingToTreat: 4, EventDate: day}))
	err := r.InsertIncident(ctx, &models.Incident{Location: "Lyon", TotalInjured: 1, RemainingToTreat: 1, EventDate: day})
	assert.ErrorIs(t, err, ErrDuplicate)

	inc, err := r.FindIncident(ctx, models.IncidentRef{Location: "Lyon", EventDate: day})
	require.NoError(t, err)
	assert.Equal(t, 4, inc.TotalInjured)

	_, err = r.FindIncident(ctx, models.IncidentRef{Location: "Paris", EventDate: day})
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := r.ListIncidents(ctx, "LY")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

// 存储故障不能被当成"没找到"
func TestStorageFailureIsNotNotFound(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	conn, err := Open(postgres.New(postgres.Config{Conn: sqlDB}), logger.Silent)
	require.NoError(t, err)
	r := NewRepo(conn)

	mock.ExpectQuery(".*").WillReturnError(errors.New("connection refused"))
	_, err = r.FindPersonByIdentifier(context.Background(), "jdupont")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDatabase)
	assert.NotErrorIs(t, err, ErrNotFound)

	var dbErr *DatabaseError
	require.ErrorAs(t, err, &dbErr)
	assert.Equal(t, "find person", dbErr.Op)

	mock.ExpectQuery(".*").WillReturnError(errors.New("connection refused"))
	_, err = r.PersonExists(context.Background(), "jdupont")
	assert.ErrorIs(t, err, ErrDatabase)

	assert.NoError(t, mock.ExpectationsWereMet())
}
