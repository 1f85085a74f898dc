// Package dedup derives event identities and tracks which events have
// already been counted, so repeated or incremental scans never double-count.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"ccstats/internal/model"
)

// BuildKey computes a stable identity for an event with priority for
// request id > message id > a composite fingerprint of
// (source file, timestamp, session id).
func BuildKey(e *model.UsageEvent) string {
	switch {
	case e.RequestID != "":
		return "req:" + e.RequestID
	case e.MessageID != "":
		return "msg:" + e.MessageID
	default:
		return "fp:" + fingerprint(e.SourceFile, e.Timestamp, e.SessionID)
	}
}

func fingerprint(sourceFile string, ts time.Time, sessionID string) string {
	parts := []string{
		sourceFile,
		ts.UTC().Format(time.RFC3339Nano),
		sessionID,
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
