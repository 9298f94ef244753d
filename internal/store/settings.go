package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// GetJWTSecret returns the token signing secret, generating and storing one
// on first use. INSERT OR IGNORE followed by a read keeps concurrent
// startups on the same value.
func GetJWTSecret(ctx context.Context, db DBTX) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating jwt secret: %w", err)
	}

	_, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO settings (key, value) VALUES ('jwt_secret', ?)`,
		hex.EncodeToString(buf),
	)
	if err != nil {
		return "", fmt.Errorf("storing jwt_secret: %w", dbErr(err))
	}

	var secret string
	err = db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = 'jwt_secret'`,
	).Scan(&secret)
	if err != nil {
		return "", fmt.Errorf("querying jwt_secret: %w", dbErr(err))
	}

	return secret, nil
}
