package access

import (
	"errors"
	"strings"

	"github.com/loiphan2202/BAT/apperr"

	"github.com/golang-jwt/jwt/v5"
)

// JWT claims
type Claims struct {
	Username string   `json:"username"`
	UserID   string   `json:"userId"`
	Email    string   `json:"email,omitempty"`
	Role     []string `json:"role"`
	jwt.RegisteredClaims
}

// Resolver maps a bearer token to the acting user.
type Resolver interface {
	Resolve(token string) (Actor, error)
}

// JWTResolver verifies HS256 tokens issued by the authentication service.
type JWTResolver struct {
	secret []byte
}

func NewJWTResolver(secret []byte) *JWTResolver {
	return &JWTResolver{secret: secret}
}

// Resolve accepts the raw token or a full "Bearer <token>" header value.
func (j *JWTResolver) Resolve(token string) (Actor, error) {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return Actor{}, apperr.Unauthenticated("missing token")
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return j.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))
	if err != nil || !parsed.Valid {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Actor{}, apperr.Unauthenticated("token expired")
		}
		return Actor{}, apperr.Unauthenticated("invalid token")
	}
	if claims.UserID == "" {
		return Actor{}, apperr.Unauthenticated("invalid token")
	}

	actor := Actor{UserID: claims.UserID, Username: claims.Username, Email: claims.Email}
	for _, r := range claims.Role {
		actor.Roles = append(actor.Roles, Role(strings.ToLower(r)))
	}
	return actor, nil
}

// Sign issues a token for a. Used by tests and local tooling; production
// tokens come from the authentication service.
func (j *JWTResolver) Sign(a Actor, claims jwt.RegisteredClaims) (string, error) {
	roles := make([]string, 0, len(a.Roles))
	for _, r := range a.Roles {
		roles = append(roles, string(r))
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Username:         a.Username,
		UserID:           a.UserID,
		Email:            a.Email,
		Role:             roles,
		RegisteredClaims: claims,
	})
	return t.SignedString(j.secret)
}
