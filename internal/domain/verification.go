package domain

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/mmcloughlin/geohash"
)

const (
	// otpDigits is the width of the one-time code
	otpDigits = 6
	// geohashPrecision 5 gives a roughly 5km x 5km cell, coarse on purpose
	// so traveler and guide fingerprints compare by proximity, not GPS match
	geohashPrecision = 5
	// verificationTTL is how long a start code stays valid
	verificationTTL = 30 * time.Minute
)

// TripVerification binds traveler and guide at trip start. One active record
// per trip; re-issuing overwrites the previous one.
type TripVerification struct {
	TripID          string     `json:"trip_id"`
	OTP             string     `json:"otp"`
	TravelerGeohash string     `json:"traveler_geohash"`
	GuideGeohash    string     `json:"guide_geohash,omitempty"`
	Verified        bool       `json:"verified"`
	ExpiresAt       time.Time  `json:"expires_at"`
	VerifiedAt      *time.Time `json:"verified_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// NewTripVerification mints a fresh code and location fingerprint for a trip
func NewTripVerification(tripID string, lat, lng float64) (*TripVerification, error) {
	otp, err := generateOTP()
	if err != nil {
		return nil, fmt.Errorf("failed to generate otp: %w", err)
	}

	now := time.Now().UTC()
	return &TripVerification{
		TripID:          tripID,
		OTP:             otp,
		TravelerGeohash: geohash.EncodeWithPrecision(lat, lng, geohashPrecision),
		ExpiresAt:       now.Add(verificationTTL),
		CreatedAt:       now,
	}, nil
}

// Expired is evaluated lazily at confirmation time; there is no sweep
func (v *TripVerification) Expired(now time.Time) bool {
	return now.After(v.ExpiresAt)
}

// Confirm checks the supplied code and records the guide's fingerprint.
// Expiry wins over code correctness.
func (v *TripVerification) Confirm(code string, guideLat, guideLng float64, now time.Time) error {
	if v.Expired(now) {
		return ErrVerificationExpired
	}
	if v.Verified {
		return ErrInvalidState
	}
	if code != v.OTP {
		return ErrInvalidVerificationCode
	}

	at := now.UTC()
	v.Verified = true
	v.GuideGeohash = geohash.EncodeWithPrecision(guideLat, guideLng, geohashPrecision)
	v.VerifiedAt = &at
	return nil
}

// SameArea reports whether traveler and guide fingerprints fall in one cell
func (v *TripVerification) SameArea() bool {
	return v.GuideGeohash != "" && v.GuideGeohash == v.TravelerGeohash
}

func generateOTP() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < otpDigits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpDigits, n), nil
}
