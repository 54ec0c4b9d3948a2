package otp

import (
	"context"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&OneTimeCode{}))
	return db
}

func TestGenerateAndVerify(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	code, err := svc.Generate(ctx, "+14155551001")
	require.NoError(t, err)
	require.Len(t, code, 6)

	require.NoError(t, svc.Verify(ctx, "+14155551001", code))

	// a consumed code cannot be replayed
	err = svc.Verify(ctx, "+14155551001", code)
	assert.ErrorIs(t, err, ErrVerificationFailed)
}

func TestVerify_WrongCodeFails(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	code, err := svc.Generate(ctx, "+14155551002")
	require.NoError(t, err)

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	assert.ErrorIs(t, svc.Verify(ctx, "+14155551002", wrong), ErrVerificationFailed)
}

func TestVerify_ExpiredCodeFails(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	rec := OneTimeCode{
		MobileNumber: "+14155551003",
		Code:         "123456",
		ExpiresAt:    time.Now().UTC().Add(-time.Minute),
	}
	require.NoError(t, db.Create(&rec).Error)

	assert.ErrorIs(t, svc.Verify(ctx, "+14155551003", "123456"), ErrVerificationFailed)
}

func TestVerify_NewestCodeWins(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	first, err := svc.Generate(ctx, "+14155551004")
	require.NoError(t, err)
	second, err := svc.Generate(ctx, "+14155551004")
	require.NoError(t, err)

	// both codes are live; verifying the newer one works and leaves the
	// older one verifiable too
	require.NoError(t, svc.Verify(ctx, "+14155551004", second))
	if first != second {
		require.NoError(t, svc.Verify(ctx, "+14155551004", first))
	}
}

func TestPurgeExpired_KeepsConsumedRows(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	expired := OneTimeCode{
		MobileNumber: "+14155551005",
		Code:         "111111",
		ExpiresAt:    time.Now().UTC().Add(-time.Hour),
	}
	consumed := OneTimeCode{
		MobileNumber: "+14155551005",
		Code:         "222222",
		ExpiresAt:    time.Now().UTC().Add(-time.Hour),
		Consumed:     true,
	}
	live := OneTimeCode{
		MobileNumber: "+14155551005",
		Code:         "333333",
		ExpiresAt:    time.Now().UTC().Add(time.Hour),
	}
	require.NoError(t, db.Create(&expired).Error)
	require.NoError(t, db.Create(&consumed).Error)
	require.NoError(t, db.Create(&live).Error)

	n, err := svc.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	var remaining []OneTimeCode
	require.NoError(t, db.Where("mobile_number = ?", "+14155551005").Find(&remaining).Error)
	assert.Len(t, remaining, 2)
}
