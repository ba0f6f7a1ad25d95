package main

import (
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
)

// Prints a view token for an existing map, for reissuing expired links.
func main() {
	_ = godotenv.Load(".env")

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: gen_view_token <artifact-id> [ttl]")
		os.Exit(2)
	}

	signingSecret := os.Getenv("APP_SIGNING_SECRET")
	if len(signingSecret) < 16 {
		fmt.Fprintln(os.Stderr, "APP_SIGNING_SECRET must be at least 16 characters")
		os.Exit(1)
	}

	ttl := 7 * 24 * time.Hour
	if len(os.Args) > 2 {
		parsed, err := time.ParseDuration(os.Args[2])
		if err != nil || parsed <= 0 {
			fmt.Fprintln(os.Stderr, "ttl must be a positive duration")
			os.Exit(2)
		}
		ttl = parsed
	}

	claims := jwt.MapClaims{
		"artifact_id": os.Args[1],
		"iat":         time.Now().Unix(),
		"exp":         time.Now().Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString([]byte(signingSecret))
	if err != nil {
		panic(err)
	}
	fmt.Println(signedToken)
}
