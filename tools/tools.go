//go:build tools

package tools

// Pins the goose CLI used to create and inspect migrations outside the server.
import (
	_ "github.com/pressly/goose/v3/cmd/goose"
)
