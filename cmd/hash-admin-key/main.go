package main

import (
	"fmt"
	"os"

	"golang.org/x/crypto/bcrypt"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run cmd/hash-admin-key/main.go <api-key>")
		fmt.Println("Example: go run cmd/hash-admin-key/main.go \"store-admin-key-12345\"")
		os.Exit(1)
	}

	apiKey := os.Args[1]
	if len(apiKey) < 16 {
		fmt.Fprintln(os.Stderr, "API key must be at least 16 characters")
		os.Exit(1)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(apiKey), 10)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to hash API key: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("ADMIN_API_KEY_HASH=%s\n", hash)
	fmt.Printf("\nSend the key itself in the Authorization header of admin requests:\n")
	fmt.Printf("Authorization: Bearer %s\n", apiKey)
}
