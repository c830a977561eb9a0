package token

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/gamestats/internal/dependencies/mocks"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

type ServiceSuite struct {
	suite.Suite
	clock   *mocks.MockClock
	service *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	svc, err := New(Config{Key: testKey}, s.clock, mocks.NewMockIDs())
	s.Require().NoError(err)
	s.service = svc
}

func (s *ServiceSuite) sign(method jwt.SigningMethod, claims jwt.RegisteredClaims, key any) string {
	signed, err := jwt.NewWithClaims(method, claims).SignedString(key)
	s.Require().NoError(err)
	return signed
}

func (s *ServiceSuite) validClaims() jwt.RegisteredClaims {
	now := s.clock.Now()
	return jwt.RegisteredClaims{
		Issuer:    Issuer,
		Subject:   "player-1",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}
}

func (s *ServiceSuite) TestNewRejectsShortKey() {
	_, err := New(Config{Key: []byte("short")}, s.clock, mocks.NewMockIDs())
	s.ErrorIs(err, ErrKeyTooShort)
}

func (s *ServiceSuite) TestIssueThenVerify() {
	tok, err := s.service.Issue("player-1", time.Hour)
	s.Require().NoError(err)
	s.Equal(s.clock.Now().Add(time.Hour), tok.ExpiresAt)

	id, err := s.service.Verify(tok.Value)
	s.Require().NoError(err)
	s.Equal("player-1", string(id))
}

func (s *ServiceSuite) TestIssueZeroTTLUsesDefault() {
	tok, err := s.service.Issue("player-1", 0)
	s.Require().NoError(err)
	s.Equal(s.clock.Now().Add(DefaultTTL), tok.ExpiresAt)
}

func (s *ServiceSuite) TestIssueRejectsEmptyPlayer() {
	_, err := s.service.Issue("", time.Hour)
	s.Error(err)
}

func (s *ServiceSuite) TestVerifyFailsAfterTTL() {
	tok, err := s.service.Issue("player-1", time.Hour)
	s.Require().NoError(err)

	s.clock.Advance(time.Hour - time.Second)
	_, err = s.service.Verify(tok.Value)
	s.NoError(err)

	s.clock.Advance(time.Second)
	_, err = s.service.Verify(tok.Value)
	s.ErrorIs(err, ErrInvalidToken)
}

func (s *ServiceSuite) TestVerifyRejectsSingleBitSignatureMutation() {
	tok, err := s.service.Issue("player-1", time.Hour)
	s.Require().NoError(err)

	parts := strings.Split(tok.Value, ".")
	s.Require().Len(parts, 3)
	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	s.Require().NoError(err)

	for _, bit := range []int{0, 7, len(sig)*8 - 1} {
		mutated := append([]byte(nil), sig...)
		mutated[bit/8] ^= 1 << (bit % 8)
		forged := parts[0] + "." + parts[1] + "." + base64.RawURLEncoding.EncodeToString(mutated)

		_, err := s.service.Verify(forged)
		s.ErrorIs(err, ErrInvalidToken, "bit %d", bit)
	}
}

func (s *ServiceSuite) TestVerifyRejectsOtherAlgorithms() {
	hs512 := s.sign(jwt.SigningMethodHS512, s.validClaims(), testKey)
	_, err := s.service.Verify(hs512)
	s.ErrorIs(err, ErrInvalidToken)

	none := s.sign(jwt.SigningMethodNone, s.validClaims(), jwt.UnsafeAllowNoneSignatureType)
	_, err = s.service.Verify(none)
	s.ErrorIs(err, ErrInvalidToken)
}

func (s *ServiceSuite) TestVerifyRejectsWrongKey() {
	other := s.sign(jwt.SigningMethodHS256, s.validClaims(), []byte("ffffffffffffffffffffffffffffffff"))
	_, err := s.service.Verify(other)
	s.ErrorIs(err, ErrInvalidToken)
}

func (s *ServiceSuite) TestVerifyRejectsBadClaims() {
	wrongIssuer := s.validClaims()
	wrongIssuer.Issuer = "someone-else"

	noExpiry := s.validClaims()
	noExpiry.ExpiresAt = nil

	noSubject := s.validClaims()
	noSubject.Subject = ""

	for name, claims := range map[string]jwt.RegisteredClaims{
		"wrong issuer": wrongIssuer,
		"no expiry":    noExpiry,
		"no subject":   noSubject,
	} {
		_, err := s.service.Verify(s.sign(jwt.SigningMethodHS256, claims, testKey))
		s.ErrorIs(err, ErrInvalidToken, name)
	}
}

func (s *ServiceSuite) TestVerifyRejectsGarbage() {
	for _, value := range []string{"", "not-a-token", "a.b.c"} {
		_, err := s.service.Verify(value)
		s.ErrorIs(err, ErrInvalidToken, value)
	}
}
