package accounts

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
	"golang.org/x/crypto/bcrypt"
)

const (
	userIdClaim = "user-id"
	guestClaim  = "guest"
	expClaim    = "exp"
)

type tokenClaims struct {
	UserId  string
	IsGuest bool
	Expires time.Time
}

func (s *Service) createToken(userId string, guest bool, exp time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		userIdClaim: userId,
		guestClaim:  guest,
		expClaim:    expiresCeil(exp),
		"jti":       s.newId(),
	})

	return token.SignedString(s.signingKey)
}

// parseToken checks the signature only; expiry is compared against the
// service clock by the caller.
func (s *Service) parseToken(tokenString string) (tokenClaims, error) {
	parser := &jwt.Parser{
		ValidMethods:         []string{jwt.SigningMethodHS256.Alg()},
		SkipClaimsValidation: true,
	}

	token, err := parser.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		return s.signingKey, nil
	})
	if err != nil {
		return tokenClaims{}, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return tokenClaims{}, fmt.Errorf("invalid token claims")
	}

	userId, ok := claims[userIdClaim].(string)
	if !ok || userId == "" {
		return tokenClaims{}, fmt.Errorf("invalid user id claim")
	}

	exp, ok := claims[expClaim].(float64)
	if !ok {
		return tokenClaims{}, fmt.Errorf("invalid exp claim")
	}

	guest, _ := claims[guestClaim].(bool)

	return tokenClaims{
		UserId:  userId,
		IsGuest: guest,
		Expires: time.Unix(int64(exp), 0),
	}, nil
}

// expiresCeil rounds exp up to the whole second so the claim never
// expires before the session does.
func expiresCeil(exp time.Time) int64 {
	secs := exp.Unix()
	if exp.Nanosecond() > 0 {
		secs++
	}
	return secs
}

func (s *Service) hashPassword(passwd string) (string, error) {
	passwdHash, err := bcrypt.GenerateFromPassword([]byte(passwd), s.hashCost)
	return string(passwdHash), err
}

func verifyPassword(passwdHash, passwd string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(passwdHash), []byte(passwd))
	return err == nil
}
