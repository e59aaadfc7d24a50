package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adiwena/gobiz-bridge/internal/domain"
	apperrors "github.com/adiwena/gobiz-bridge/pkg/errors"
)

func newUserFixture(t *testing.T) (*UserRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return NewUserRepository(mock), mock
}

func userColumns() []string {
	return []string{
		"id", "access_token_enc", "refresh_token_enc",
		"token_expiry", "merchant_id", "created_at", "updated_at",
	}
}

func userRow(u *domain.User) *pgxmock.Rows {
	return pgxmock.NewRows(userColumns()).AddRow(
		u.ID, u.AccessTokenEnc, u.RefreshTokenEnc,
		u.TokenExpiry, u.MerchantID, u.CreatedAt, u.UpdatedAt,
	)
}

func sampleUser() *domain.User {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.User{
		ID:              "budi",
		AccessTokenEnc:  []byte(`{"kid":"v1"}`),
		RefreshTokenEnc: []byte(`{"kid":"v1"}`),
		TokenExpiry:     1756500000000,
		MerchantID:      "G123",
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func TestUserRepository_Ensure(t *testing.T) {
	repo, mock := newUserFixture(t)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO users").
		WithArgs("budi").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Ensure(context.Background(), "budi"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Ensure_Idempotent(t *testing.T) {
	repo, mock := newUserFixture(t)
	defer mock.Close()

	// ON CONFLICT DO NOTHING reports zero rows on the second call; still no error.
	mock.ExpectExec("INSERT INTO users").
		WithArgs("budi").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	require.NoError(t, repo.Ensure(context.Background(), "budi"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Get(t *testing.T) {
	repo, mock := newUserFixture(t)
	defer mock.Close()

	u := sampleUser()
	mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs(u.ID).
		WillReturnRows(userRow(u))

	got, err := repo.Get(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, u.MerchantID, got.MerchantID)
	assert.True(t, got.HasCredentials())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Get_NotFound(t *testing.T) {
	repo, mock := newUserFixture(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows(userColumns()))

	_, err := repo.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_List(t *testing.T) {
	repo, mock := newUserFixture(t)
	defer mock.Close()

	a := sampleUser()
	b := sampleUser()
	b.ID = "sari"

	rows := pgxmock.NewRows(userColumns()).
		AddRow(a.ID, a.AccessTokenEnc, a.RefreshTokenEnc, a.TokenExpiry, a.MerchantID, a.CreatedAt, a.UpdatedAt).
		AddRow(b.ID, b.AccessTokenEnc, b.RefreshTokenEnc, b.TokenExpiry, b.MerchantID, b.CreatedAt, b.UpdatedAt)

	mock.ExpectQuery("SELECT (.+) FROM users").WillReturnRows(rows)

	users, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "sari", users[1].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_SaveCredentials(t *testing.T) {
	repo, mock := newUserFixture(t)
	defer mock.Close()

	acc := []byte(`{"kid":"v1","data":"a"}`)
	ref := []byte(`{"kid":"v1","data":"r"}`)

	mock.ExpectExec("UPDATE users").
		WithArgs(acc, ref, int64(1756500000000), "budi").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.SaveCredentials(context.Background(), "budi", acc, ref, 1756500000000))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_SaveCredentials_UnknownUser(t *testing.T) {
	repo, mock := newUserFixture(t)
	defer mock.Close()

	mock.ExpectExec("UPDATE users").
		WithArgs([]byte("a"), []byte("r"), int64(1), "ghost").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.SaveCredentials(context.Background(), "ghost", []byte("a"), []byte("r"), 1)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_SaveMerchantID(t *testing.T) {
	repo, mock := newUserFixture(t)
	defer mock.Close()

	mock.ExpectExec("UPDATE users").
		WithArgs("G123", "budi").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.SaveMerchantID(context.Background(), "budi", "G123"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_ClearCredentials(t *testing.T) {
	repo, mock := newUserFixture(t)
	defer mock.Close()

	// Logout nulls every credential column rather than writing zero values.
	mock.ExpectExec("SET access_token_enc = NULL, refresh_token_enc = NULL, token_expiry = NULL, merchant_id = NULL").
		WithArgs("budi").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.ClearCredentials(context.Background(), "budi"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Delete_NotFound(t *testing.T) {
	repo, mock := newUserFixture(t)
	defer mock.Close()

	mock.ExpectExec("DELETE FROM users").
		WithArgs("ghost").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := repo.Delete(context.Background(), "ghost")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}
