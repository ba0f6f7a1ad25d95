package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

func (a *App) createViewToken(artifactID string, expiresIn time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"artifact_id": artifactID,
		"iat":         time.Now().Unix(),
		"exp":         time.Now().Add(expiresIn).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(a.cfg.AppSigningSecret))
}

func (a *App) verifyViewToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(a.cfg.AppSigningSecret), nil
	})
	if err != nil || !token.Valid {
		return "", fmt.Errorf("invalid token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid claims")
	}
	artifactID, ok := claims["artifact_id"].(string)
	if !ok || artifactID == "" {
		return "", fmt.Errorf("missing artifact_id")
	}
	return artifactID, nil
}

// authorizeArtifact checks that the token query parameter was issued for the :id in the path.
func (a *App) authorizeArtifact(c *gin.Context) (string, error) {
	artifactID := c.Param("id")
	tokenArtifactID, err := a.verifyViewToken(c.Query("token"))
	if err != nil || tokenArtifactID != artifactID {
		return "", &apiError{Status: http.StatusNotFound, Code: "not_found", Message: "Map not found."}
	}
	return artifactID, nil
}

func artifactURL(path, artifactID, token string) string {
	return path + "/" + url.PathEscape(artifactID) + "?token=" + url.QueryEscape(token)
}

func artifactSummaryURL(artifactID, token string) string {
	return "/maps/" + url.PathEscape(artifactID) + "/summary.pdf?token=" + url.QueryEscape(token)
}

func (a *App) checkRateLimit(key string, maxRequests int, window time.Duration, now time.Time) bool {
	a.rateLimiterMu.Lock()
	defer a.rateLimiterMu.Unlock()

	bucket, ok := a.rateBuckets[key]
	if !ok || now.Sub(bucket.start) >= window {
		a.rateBuckets[key] = rateBucket{start: now, count: 1}
		return true
	}
	bucket.count++
	a.rateBuckets[key] = bucket
	return bucket.count <= maxRequests
}

func (a *App) requireUploadQuota() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.checkRateLimit("upload:"+c.ClientIP(), a.cfg.UploadRateLimit, uploadRateLimitWindow, a.now()) {
			a.writeAPIError(c, &apiError{Status: http.StatusTooManyRequests, Code: "rate_limited", Message: "Too many uploads. Please try again later."})
			c.Abort()
			return
		}
		c.Next()
	}
}

func (a *App) startRateLimiterCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				a.pruneRateLimiterState(now)
			}
		}
	}()
}

func (a *App) pruneRateLimiterState(now time.Time) {
	a.rateLimiterMu.Lock()
	defer a.rateLimiterMu.Unlock()
	for key, bucket := range a.rateBuckets {
		if now.Sub(bucket.start) >= uploadRateLimitWindow {
			delete(a.rateBuckets, key)
		}
	}
}
