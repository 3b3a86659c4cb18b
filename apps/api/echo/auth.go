package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/edusource/core"
	"github.com/trezcool/edusource/core/user"
)

const contextTokenKey = "userToken"

// Claims represents the authorization claims transmitted via a JWT issued by the identity provider.
type Claims struct {
	jwt.StandardClaims
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
	Role  string `json:"role,omitempty"`
}

type authMiddlewares struct {
	required echo.MiddlewareFunc
	optional echo.MiddlewareFunc // anonymous requests pass through
}

func newJWTConfig(secretKey string) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(secretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        new(Claims),
	}
}

func optionalJWTConfig(conf middleware.JWTConfig) middleware.JWTConfig {
	conf.Skipper = func(ctx echo.Context) bool {
		return ctx.Request().Header.Get(echo.HeaderAuthorization) == ""
	}
	return conf
}

func GetUserClaims(usr user.User, conf *core.Config) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   usr.ID,
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		Name:  usr.Name,
		Email: usr.Email,
		Phone: usr.Phone,
		Role:  usr.Role,
	}
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func GenerateToken(claims *Claims, secretKey string) (string, error) {
	token := jwt.NewWithClaims(jwt.GetSigningMethod(middleware.AlgorithmHS256), claims)
	ss, err := token.SignedString([]byte(secretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func (c Claims) User() user.User {
	return user.User{
		ID:    c.Subject,
		Name:  c.Name,
		Email: c.Email,
		Phone: c.Phone,
		Role:  c.Role,
	}
}

func getContextToken(ctx echo.Context) (*jwt.Token, *Claims, bool) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok && token.Valid {
		if claims, ok := token.Claims.(*Claims); ok && claims.Subject != "" {
			return token, claims, true
		}
	}
	return nil, nil, false
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if _, claims, ok := getContextToken(ctx); ok {
		return *claims, nil
	}
	return Claims{}, errUnauthorized
}

// getContextSession returns the caller's session; it is anonymous when no valid token was presented.
func getContextSession(ctx echo.Context) user.Session {
	token, claims, ok := getContextToken(ctx)
	if !ok {
		return user.Session{}
	}
	return user.NewSession(claims.User(), token.Raw)
}

func getContextUser(ctx echo.Context) (user.User, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return user.User{}, err
	}
	return claims.User(), nil
}
