// server/auth/auth.go
package auth

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

const (
	HeaderToken = "X-Lumi-Token"
	QueryKey    = "key"
)

// Guard checks the shared secret against a bcrypt hash.
type Guard struct {
	hash []byte
}

// New hashes password unless hash is given; a non-empty hash wins.
func New(password, hash string) (*Guard, error) {
	if hash != "" {
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, fmt.Errorf("auth: invalid password hash: %w", err)
		}
		return &Guard{hash: []byte(hash)}, nil
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}
	return &Guard{hash: h}, nil
}

func (g *Guard) Check(token string) bool {
	if token == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(g.hash, []byte(token)) == nil
}

// Token reads the secret from the header, then from the key query param.
func Token(c *fiber.Ctx) string {
	if t := c.Get(HeaderToken); t != "" {
		return t
	}
	return c.Query(QueryKey)
}

func (g *Guard) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !g.Check(Token(c)) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "unauthorized",
			})
		}
		return c.Next()
	}
}
