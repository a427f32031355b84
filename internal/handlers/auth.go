package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"shoporders/internal/models"
)

const (
	ctxClaims = "claims"
	ctxShopID = "shop_id"
)

type Claims struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

func (c *Claims) Admin() bool { return c.Role == models.RoleAdmin }

// TokenIssuer signs and verifies HS256 access tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}
}

func (t *TokenIssuer) GenerateToken(user models.User) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   strconv.FormatInt(user.ID, 10),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

func (t *TokenIssuer) VerifyToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.UserID <= 0 {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// AuthMiddleware rejects requests without a valid Bearer token.
func AuthMiddleware(tokens *TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token required"})
			return
		}
		claims, err := tokens.VerifyToken(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		c.Set(ctxClaims, claims)
		c.Next()
	}
}

// ShopAccess answers whether a user may manage a shop's orders.
type ShopAccess interface {
	IsMember(ctx context.Context, shopID, userID int64) (bool, error)
}

// RequireShopMember parses :shopID and lets through owners and admins.
func RequireShopMember(shops ShopAccess) gin.HandlerFunc {
	return func(c *gin.Context) {
		shopID, err := strconv.ParseInt(c.Param("shopID"), 10, 64)
		if err != nil || shopID <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid shop id"})
			return
		}
		ok, err := canManage(c, shops, shopID)
		if err != nil {
			writeError(c, err)
			c.Abort()
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "access denied"})
			return
		}
		c.Set(ctxShopID, shopID)
		c.Next()
	}
}

func canManage(c *gin.Context, shops ShopAccess, shopID int64) (bool, error) {
	claims := currentClaims(c)
	if claims.Admin() {
		return true, nil
	}
	ok, err := shops.IsMember(c.Request.Context(), shopID, claims.UserID)
	if err != nil {
		return false, fmt.Errorf("check shop %d access: %w", shopID, err)
	}
	return ok, nil
}

func currentClaims(c *gin.Context) *Claims {
	return c.MustGet(ctxClaims).(*Claims)
}
