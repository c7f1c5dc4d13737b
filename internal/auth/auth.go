// Package auth resolves the Gemini API key for backend access.
package auth

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
)

// GetAPIKey retrieves the Gemini API key from the GEMINI_API_KEY environment
// variable. The key is never logged.
func GetAPIKey() (string, error) {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		log.Debug().Msg("Using API key from environment variable")
		return key, nil
	}
	return "", fmt.Errorf("API key not found: set GEMINI_API_KEY")
}
