package jwttoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	dErrors "verity/pkg/domain-errors"
)

type JWTSuite struct {
	suite.Suite
	service *JWTService
}

func TestJWTSuite(t *testing.T) {
	suite.Run(t, new(JWTSuite))
}

func (s *JWTSuite) SetupTest() {
	s.service = NewJWTService("test-signing-key", "verity", "verity-api")
}

func (s *JWTSuite) TestValidateToken() {
	s.Run("round trip returns the user id", func() {
		token, err := s.service.GenerateAccessToken("user-123", time.Hour)
		s.Require().NoError(err)

		claims, err := s.service.ValidateToken(token)
		s.Require().NoError(err)
		s.Equal("user-123", claims.UserID)
	})

	s.Run("expired token rejected", func() {
		token, err := s.service.GenerateAccessToken("user-123", -time.Minute)
		s.Require().NoError(err)

		_, err = s.service.ValidateToken(token)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
		s.Equal("token has expired", err.Error())
	})

	s.Run("token signed with a different key rejected", func() {
		other := NewJWTService("other-key", "verity", "verity-api")
		token, err := other.GenerateAccessToken("user-123", time.Hour)
		s.Require().NoError(err)

		_, err = s.service.ValidateToken(token)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("garbage token rejected", func() {
		_, err := s.service.ValidateToken("not.a.jwt")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}
