package handler

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var jwtSecret = []byte(jwtSecretFromEnv())

func jwtSecretFromEnv() string {
	if s := os.Getenv("JWT_SECRET"); s != "" {
		return s
	}
	return "dev-only-insecure-secret"
}

// generateJWT mints a token carrying the anonymous identity.
func generateJWT(anonID, username string) (string, error) {
	claims := jwt.MapClaims{
		"anon_id": anonID,
		"name":    username,
		"exp":     time.Now().Add(time.Hour * 72).Unix(),
		"iss":     "pairgogo-service",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

// validateToken parses the Bearer token and returns the anonymous id and
// display name.
func validateToken(tokenString string) (anonID, username string, err error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return jwtSecret, nil
	})
	if err != nil {
		return "", "", err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", "", errors.New("invalid token claims")
	}
	anonID, _ = claims["anon_id"].(string)
	username, _ = claims["name"].(string)
	if anonID == "" {
		return "", "", errors.New("token has no anon_id")
	}
	return anonID, username, nil
}

// bearerIdentity extracts and validates the Authorization header.
func bearerIdentity(c *gin.Context) (anonID, username string, ok bool) {
	authHeader := c.GetHeader("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization token missing"})
		return "", "", false
	}
	anonID, username, err := validateToken(strings.TrimPrefix(authHeader, "Bearer "))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token or expired"})
		return "", "", false
	}
	return anonID, username, true
}

// GetAnonID creates a fresh anonymous identity and returns its JWT.
func (h *Handler) GetAnonID(c *gin.Context) {
	anonUUID, _ := uuid.NewRandom()
	anonID := anonUUID.String()
	username := "anon-" + anonID[:8]

	token, err := generateJWT(anonID, username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "anon_id": anonID, "username": username})
}
