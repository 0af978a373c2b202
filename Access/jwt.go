package Access

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"FalconFreight/Models"

	"github.com/golang-jwt/jwt/v4"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// Resolver turns a bearer credential into a caller identity.
type Resolver interface {
	Resolve(ctx context.Context, token string) (Identity, error)
}

// UserLookup lets the resolver confirm the user still exists and read their
// current role.
type UserLookup interface {
	UserByID(ctx context.Context, id uint) (Models.User, error)
}

type Claims struct {
	Role Models.Role `json:"role"`
	jwt.RegisteredClaims
}

// JWTResolver issues and verifies HMAC-signed session tokens.
type JWTResolver struct {
	secret []byte
	ttl    time.Duration
	users  UserLookup
	now    func() time.Time
}

var _ Resolver = (*JWTResolver)(nil)

func NewJWTResolver(secret string, ttl time.Duration, users UserLookup) *JWTResolver {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &JWTResolver{secret: []byte(secret), ttl: ttl, users: users, now: time.Now}
}

// Issue signs a token for user and returns it with its expiry.
func (r *JWTResolver) Issue(user Models.User) (string, time.Time, error) {
	now := r.now()
	expires := now.Add(r.ttl)
	claims := Claims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "falcon-freight",
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(r.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, expires, nil
}

func (r *JWTResolver) Resolve(ctx context.Context, raw string) (Identity, error) {
	if raw == "" {
		return Identity{}, ErrInvalidToken
	}
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return r.secret, nil
	})
	if err != nil || !token.Valid {
		return Identity{}, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return Identity{}, ErrInvalidToken
	}
	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		return Identity{}, ErrInvalidToken
	}

	who := Identity{UserID: uint(id), Role: claims.Role}
	if r.users != nil {
		user, err := r.users.UserByID(ctx, who.UserID)
		if err != nil {
			if Models.IsNotFound(err) {
				return Identity{}, ErrInvalidToken
			}
			return Identity{}, err
		}
		who.Role = user.Role
	}
	if !who.Role.Valid() {
		return Identity{}, ErrInvalidToken
	}
	return who, nil
}
