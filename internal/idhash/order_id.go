package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"daywise-backtester/internal/domain"
)

// ComputeOrderID computes a deterministic order_id using SHA256.
// Formula: SHA256(symbol|timestamp_ns|side|type|seq)
// Returns hex-encoded hash (64 characters).
//
// seq is the per-bar submission index, so two orders for the same
// symbol on the same bar still hash differently.
func ComputeOrderID(
	symbol string,
	createdAt time.Time,
	side domain.OrderSide,
	orderType domain.OrderType,
	seq int,
) string {
	data := fmt.Sprintf("%s|%d|%s|%s|%d",
		symbol,
		createdAt.UnixNano(),
		string(side),
		string(orderType),
		seq,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
