package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"time"

	"gorm.io/gorm"
)

// CodeTTL bounds how long an issued code stays valid.
const CodeTTL = 5 * time.Minute

var ErrVerificationFailed = errors.New("invalid or expired otp")

// OneTimeCode rows are consumed by flag, not deleted, so a code can never be
// replayed. Multiple outstanding codes per mobile number are allowed;
// verification picks the newest live one.
type OneTimeCode struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement"`
	MobileNumber string    `gorm:"type:varchar(20);index;not null"`
	Code         string    `gorm:"type:varchar(6);not null"`
	ExpiresAt    time.Time `gorm:"not null"`
	Consumed     bool      `gorm:"not null;default:false"`
	CreatedAt    time.Time
}

func (OneTimeCode) TableName() string { return "one_time_codes" }

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func randomCode6() (string, error) {
	const digits = "0123456789"
	out := make([]byte, 6)
	for i := range out {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(digits))))
		if err != nil {
			return "", err
		}
		out[i] = digits[n.Int64()]
	}
	return string(out), nil
}

// Generate issues and stores a fresh 6-digit code for the mobile number.
// Delivery is mocked: the caller returns the code in the API response.
func (s *Service) Generate(ctx context.Context, mobileNumber string) (string, error) {
	code, err := randomCode6()
	if err != nil {
		return "", err
	}
	rec := OneTimeCode{
		MobileNumber: mobileNumber,
		Code:         code,
		ExpiresAt:    time.Now().UTC().Add(CodeTTL),
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return "", err
	}
	return code, nil
}

// Verify consumes the most recently issued matching code that is still
// unconsumed and unexpired. Anything else fails uniformly.
func (s *Service) Verify(ctx context.Context, mobileNumber, code string) error {
	var rec OneTimeCode
	err := s.db.WithContext(ctx).
		Where("mobile_number = ? AND code = ? AND consumed = ? AND expires_at > ?",
			mobileNumber, code, false, time.Now().UTC()).
		Order("created_at DESC, id DESC").
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrVerificationFailed
		}
		return err
	}
	return s.db.WithContext(ctx).Model(&rec).Update("consumed", true).Error
}

// PurgeExpired removes expired codes that were never consumed. Consumed rows
// stay for audit.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("consumed = ? AND expires_at <= ?", false, time.Now().UTC()).
		Delete(&OneTimeCode{})
	return res.RowsAffected, res.Error
}
