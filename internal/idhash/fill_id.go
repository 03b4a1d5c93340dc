package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// ComputeFillID computes a deterministic fill_id using SHA256.
// Formula: SHA256(order_id|seq)
// Returns hex-encoded hash (64 characters).
func ComputeFillID(orderID string, seq int) string {
	data := fmt.Sprintf("%s|%d", orderID, seq)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeRunID computes a deterministic run identifier from the inputs
// that fully determine a backtest's output.
// Formula: SHA256(strategy|symbol|start_ns|end_ns|config_digest)
func ComputeRunID(strategy, symbol string, start, end time.Time, configDigest string) string {
	data := fmt.Sprintf("%s|%s|%d|%d|%s",
		strategy,
		symbol,
		start.UnixNano(),
		end.UnixNano(),
		configDigest,
	)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
