package station

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fuelroute/internal/geometry"
)

// mockAdapter satisfies database.DB by delegating to pgxmock, the same
// shape pgxmock expects for a pgx-backed repository.
type mockAdapter struct {
	mock pgxmock.PgxPoolIface
}

func (a *mockAdapter) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return a.mock.Exec(ctx, sql, args...)
}

func (a *mockAdapter) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return a.mock.Query(ctx, sql, args...)
}

func (a *mockAdapter) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return a.mock.QueryRow(ctx, sql, args...)
}

func (a *mockAdapter) BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	return a.mock.BeginTx(ctx, opts)
}

func (a *mockAdapter) Close() {
	a.mock.Close()
}

func (a *mockAdapter) Ping(ctx context.Context) error {
	return a.mock.Ping(ctx)
}

func setupMock(t *testing.T) (pgxmock.PgxPoolIface, *Repository) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	repo := NewRepository(&mockAdapter{mock: mock})
	return mock, repo
}

func TestRepository_StationsWithinCorridor(t *testing.T) {
	mock, repo := setupMock(t)
	defer mock.Close()

	rows := pgxmock.NewRows([]string{"opis_id", "name", "address", "city", "state", "retail_price", "lat", "lon", "fraction"}).
		AddRow(int64(1), "Pilot", "1 Hwy 1", "Springfield", "IL", 2.50, 39.8, -89.6, 0.2).
		AddRow(int64(2), "Loves", "2 Hwy 1", "Springfield", "IL", 2.75, 39.9, -89.5, 0.5)

	line := []geometry.Point{{Lat: 39.0, Lon: -90.0}, {Lat: 40.0, Lon: -89.0}}
	mock.ExpectQuery("SELECT").
		WithArgs(geometry.ToWKTLineString(line), 10*geometry.MetersPerMile).
		WillReturnRows(rows)

	out, err := repo.StationsWithinCorridor(context.Background(), line, 10)

	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, int64(1), out[0].OpisID)
	assert.InDelta(t, 0.2, out[0].Fraction, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_StationsWithinCorridor_RejectsShortLine(t *testing.T) {
	_, repo := setupMock(t)
	_, err := repo.StationsWithinCorridor(context.Background(), []geometry.Point{{Lat: 1, Lon: 2}}, 10)
	assert.Error(t, err)
}

func TestRepository_ByOpisID_NotFound(t *testing.T) {
	mock, repo := setupMock(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT").WithArgs(int64(99)).WillReturnError(pgx.ErrNoRows)

	s, err := repo.ByOpisID(context.Background(), 99)
	require.NoError(t, err)
	assert.Nil(t, s)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ByOpisID_Error(t *testing.T) {
	mock, repo := setupMock(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT").WillReturnError(errors.New("connection reset"))

	s, err := repo.ByOpisID(context.Background(), 99)
	assert.Error(t, err)
	assert.Nil(t, s)
}

func TestRepository_UpdateLocation(t *testing.T) {
	mock, repo := setupMock(t)
	defer mock.Close()

	mock.ExpectExec("UPDATE stations").
		WithArgs(int64(1), geometry.ToWKTPoint(geometry.Point{Lat: 1, Lon: 2}), "geocoded:census:postal_full_address").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.UpdateLocation(context.Background(), 1, geometry.Point{Lat: 1, Lon: 2}, "geocoded:census:postal_full_address")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ExistingOpisIDs(t *testing.T) {
	mock, repo := setupMock(t)
	defer mock.Close()

	rows := pgxmock.NewRows([]string{"opis_id"}).AddRow(int64(1)).AddRow(int64(2))
	mock.ExpectQuery("SELECT opis_id FROM stations").WillReturnRows(rows)

	existing, err := repo.ExistingOpisIDs(context.Background())
	require.NoError(t, err)
	assert.True(t, existing[1])
	assert.True(t, existing[2])
	assert.False(t, existing[3])
}

func TestRepository_BulkInsert_BatchesLargeInput(t *testing.T) {
	mock, repo := setupMock(t)
	defer mock.Close()

	rows := make([]NewStation, 2500)
	var firstArgs, secondArgs []any
	for i := range rows {
		rows[i] = NewStation{OpisID: int64(i + 1), Name: "S", Address: "A", City: "C", State: "ST", Price: 2.0}
		s := rows[i]
		if i < 2000 {
			firstArgs = append(firstArgs, s.OpisID, s.Name, s.Address, s.City, s.State, s.RackID, s.Price)
		} else {
			secondArgs = append(secondArgs, s.OpisID, s.Name, s.Address, s.City, s.State, s.RackID, s.Price)
		}
	}

	mock.ExpectExec("INSERT INTO stations").WithArgs(firstArgs...).WillReturnResult(pgxmock.NewResult("INSERT", 2000))
	mock.ExpectExec("INSERT INTO stations").WithArgs(secondArgs...).WillReturnResult(pgxmock.NewResult("INSERT", 500))

	err := repo.BulkInsert(context.Background(), rows)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_WorkingSet_SkipAttempted(t *testing.T) {
	mock, repo := setupMock(t)
	defer mock.Close()

	rows := pgxmock.NewRows([]string{"opis_id", "address", "city", "state"}).
		AddRow(int64(1), "1 Main St", "Peoria", "IL")
	mock.ExpectQuery(`SELECT opis_id, address, city, state FROM stations WHERE location IS NULL AND geocode_source IS NULL ORDER BY opis_id`).
		WillReturnRows(rows)

	out, err := repo.WorkingSet(context.Background(), true, 0)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, int64(1), out[0].OpisID)
}

func TestRepository_ApplyGeocodeUpdates(t *testing.T) {
	mock, repo := setupMock(t)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE stations").
		WithArgs(int64(1), geometry.ToWKTPoint(geometry.Point{Lat: 1, Lon: 2}), "geocoded:census:postal_full_address", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE stations").
		WithArgs(int64(2), "unresolved:POSTAL_ADDRESS:postal_no_match", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	updates := []GeocodeUpdate{
		{OpisID: 1, Point: &geometry.Point{Lat: 1, Lon: 2}, Source: "geocoded:census:postal_full_address"},
		{OpisID: 2, Point: nil, Source: "unresolved:POSTAL_ADDRESS:postal_no_match"},
	}

	err := repo.ApplyGeocodeUpdates(context.Background(), updates)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ApplyGeocodeUpdates_Empty(t *testing.T) {
	_, repo := setupMock(t)
	err := repo.ApplyGeocodeUpdates(context.Background(), nil)
	assert.NoError(t, err)
}
