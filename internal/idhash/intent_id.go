// Package idhash computes deterministic identifiers for trade intents.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeIntentID computes a deterministic intent_id using SHA256.
// Formula: SHA256(account|chain_id|season_id|side|ticket_amount|created_at)
// Returns hex-encoded hash (64 characters).
func ComputeIntentID(
	account string,
	chainID uint64,
	seasonID uint64,
	side string,
	ticketAmount string,
	createdAt int64,
) string {
	data := fmt.Sprintf("%s|%d|%d|%s|%s|%d",
		account,
		chainID,
		seasonID,
		side,
		ticketAmount,
		createdAt,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
