package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/account"
)

// appJWTConfig is the default JWT auth middleware config. Tokens are minted by
// the identity provider (or GenerateToken in tests and the admin CLI); role
// claims are re-checked by every privileged service method regardless.
var appJWTConfig = middleware.JWTConfig{
	SigningKey:    []byte(core.Conf.SecretKey),
	SigningMethod: middleware.AlgorithmHS256,
	ContextKey:    "accountToken",
	Claims:        new(Claims),
}

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	Name          string   `json:"name,omitempty"`
	Email         string   `json:"email,omitempty"`
	IsStudent     bool     `json:"is_student,omitempty"`     // -> STUDENT PORTAL
	IsTeacher     bool     `json:"is_teacher,omitempty"`     // -> TEACHER PORTAL
	IsCoordinator bool     `json:"is_coordinator,omitempty"` // -> COORDINATOR PORTAL
	IsAdmin       bool     `json:"is_admin,omitempty"`       // -> ADMIN PORTAL
	Roles         []string `json:"roles,omitempty"`
}

// Actor rebuilds the service-level caller identity from the claims.
func (c Claims) Actor() account.Actor {
	return account.Actor{ID: c.Subject, Name: c.Name, Roles: c.Roles}
}

func (c Claims) IsStaff() bool {
	return c.IsAdmin || c.IsCoordinator
}

func GetAccountClaims(acct account.Account) *Claims {
	now := time.Now()
	actor := acct.Actor()

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    core.Conf.AppName,
			Subject:   acct.ID,
			Audience:  "Darasa",
			ExpiresAt: now.Add(core.Conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		Name:          acct.Name,
		Email:         acct.Email,
		IsStudent:     actor.IsStudent(),
		IsTeacher:     actor.IsTeacher(),
		IsCoordinator: actor.IsCoordinator(),
		IsAdmin:       actor.IsAdmin(),
		Roles:         acct.Roles,
	}
}

// GenerateToken generates a signed JWT token string representing the account Claims.
func GenerateToken(claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(appJWTConfig.SigningMethod)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(appJWTConfig.SigningKey)
	if err != nil {
		return "", errors.New("signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(appJWTConfig.ContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}
