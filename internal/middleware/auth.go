package middleware

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// Locals keys set by Identify.
const (
	LocalUserID   = "userId"
	LocalUserName = "userName"
)

const tokenTTL = 30 * 24 * time.Hour

// Claims carry a self-asserted identity. Nothing here proves who the caller
// is; the token only saves clients from resending their id and name.
type Claims struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	jwt.RegisteredClaims
}

type Identity struct {
	secret []byte
}

func NewIdentity(secret string) *Identity {
	return &Identity{secret: []byte(secret)}
}

func (i *Identity) Generate(userID, name string) (string, error) {
	if userID == "" {
		return "", errors.New("identity: user id is required")
	}
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Name:   name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("identity: sign token: %w", err)
	}
	return signed, nil
}

func (i *Identity) Parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("identity: parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, errors.New("identity: invalid token claims")
	}
	return claims, nil
}

// Identify reads an identity token from ?token= or a Bearer header and
// stores its user id and name in Locals. Requests without a usable token
// pass through untouched.
func (i *Identity) Identify() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := c.Query("token")
		if tokenString == "" {
			authHeader := c.Get("Authorization")
			tokenString = strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				tokenString = ""
			}
		}
		if tokenString == "" {
			return c.Next()
		}

		claims, err := i.Parse(tokenString)
		if err != nil {
			return c.Next()
		}
		c.Locals(LocalUserID, claims.UserID)
		c.Locals(LocalUserName, claims.Name)
		return c.Next()
	}
}

// GetUserID returns the identified user id, or "" when there is none.
func GetUserID(c *fiber.Ctx) string {
	userID, _ := c.Locals(LocalUserID).(string)
	return userID
}

func GetUserName(c *fiber.Ctx) string {
	name, _ := c.Locals(LocalUserName).(string)
	return name
}
