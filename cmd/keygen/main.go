package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/tjfontaine/stepwise/internal/auth"
)

func main() {
	var apiKey string
	switch len(os.Args) {
	case 1:
		// Generate a random key when none is given
		b := make([]byte, 24)
		if _, err := rand.Read(b); err != nil {
			fmt.Fprintf(os.Stderr, "generate key: %v\n", err)
			os.Exit(1)
		}
		apiKey = "sk-" + hex.EncodeToString(b)
	case 2:
		apiKey = os.Args[1]
	default:
		fmt.Println("Usage: go run ./cmd/keygen [api-key]")
		fmt.Println("Generates a SHA-256 hash of the API key for users[].key_hash in config.yaml")
		os.Exit(1)
	}

	keyHash := auth.HashAPIKey(apiKey)

	fmt.Printf("API Key: %s\n", apiKey)
	fmt.Printf("SHA-256 Hash: %s\n", keyHash)
	fmt.Println("\nAdd this to your config.yaml:")
	fmt.Printf("users:\n")
	fmt.Printf("  - id: 1\n")
	fmt.Printf("    name: \"generated\"\n")
	fmt.Printf("    key_hash: \"%s\"\n", keyHash)
}
