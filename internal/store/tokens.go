package store

import (
	"context"
	"fmt"
	"time"
)

// RevokeToken adds a token's JTI to the revocation list and drops
// revocations that have expired.
func RevokeToken(ctx context.Context, db DBTX, jti string, expiresAt time.Time) error {
	_, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO revoked_tokens (jti, expires_at) VALUES (?, ?)`,
		jti, formatTime(expiresAt),
	)
	if err != nil {
		return fmt.Errorf("revoking token: %w", dbErr(err))
	}

	_, _ = db.ExecContext(ctx,
		`DELETE FROM revoked_tokens WHERE expires_at < ?`, formatTime(time.Now()),
	)

	return nil
}

// IsTokenRevoked checks if a token's JTI has been revoked.
func IsTokenRevoked(ctx context.Context, db DBTX, jti string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM revoked_tokens WHERE jti = ?`, jti,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking token revocation: %w", dbErr(err))
	}
	return count > 0, nil
}
