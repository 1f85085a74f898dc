package source

import (
	"bytes"
	"encoding/json"
)

// RawRecord is the loosely-typed intermediate form of one log line. Field
// names cover every spelling the CLI has used across schema versions;
// normalization resolves the precedence between them.
type RawRecord struct {
	Type        string `json:"type,omitempty"`
	MessageType string `json:"message_type,omitempty"`

	Timestamp string `json:"timestamp,omitempty"`
	Date      string `json:"date,omitempty"`

	SessionID      string `json:"sessionId,omitempty"`
	SessionIDSnake string `json:"session_id,omitempty"`

	RequestID      string `json:"requestId,omitempty"`
	RequestIDSnake string `json:"request_id,omitempty"`
	MessageID      string `json:"message_id,omitempty"`

	Model string `json:"model,omitempty"`

	// Cost appears under two historical names. Pointers distinguish an
	// explicit zero from an absent field.
	CostUSD *float64 `json:"costUSD,omitempty"`
	CostAlt *float64 `json:"cost_usd,omitempty"`

	Usage   *RawUsage   `json:"usage,omitempty"`
	Message *RawMessage `json:"message,omitempty"`
}

// RawMessage is the nested message envelope some schema versions wrap
// model, usage, and id under.
type RawMessage struct {
	ID    string    `json:"id,omitempty"`
	Model string    `json:"model,omitempty"`
	Usage *RawUsage `json:"usage,omitempty"`
}

// RawUsage holds token counts. The precise snake_case names take precedence
// over the legacy camelCase aliases.
type RawUsage struct {
	InputTokens              int64 `json:"input_tokens"`
	OutputTokens             int64 `json:"output_tokens"`
	CacheCreationInputTokens int64 `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int64 `json:"cache_read_input_tokens"`

	CacheCreationLegacy int64 `json:"cacheCreationInputTokens,omitempty"`
	CacheReadLegacy     int64 `json:"cacheReadInputTokens,omitempty"`
}

// CacheWrite returns cache-creation tokens, preferring the precise field.
func (u *RawUsage) CacheWrite() int64 {
	if u.CacheCreationInputTokens > 0 {
		return u.CacheCreationInputTokens
	}
	return u.CacheCreationLegacy
}

// CacheRead returns cache-read tokens, preferring the precise field.
func (u *RawUsage) CacheRead() int64 {
	if u.CacheReadInputTokens > 0 {
		return u.CacheReadInputTokens
	}
	return u.CacheReadLegacy
}

var emptyObject = []byte("{}")

// DecodeLine parses one log line into a RawRecord. A malformed line or one
// that decodes to an empty object returns ok=false; the caller counts it as
// a non-fatal per-line parse failure and moves on.
func DecodeLine(line []byte) (*RawRecord, bool) {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 || bytes.Equal(trimmed, emptyObject) {
		return nil, false
	}

	var rec RawRecord
	if err := json.Unmarshal(trimmed, &rec); err != nil {
		return nil, false
	}
	if rec.isEmpty() {
		return nil, false
	}
	return &rec, true
}

func (r *RawRecord) isEmpty() bool {
	return r.Type == "" && r.MessageType == "" && r.Timestamp == "" &&
		r.Date == "" && r.SessionID == "" && r.SessionIDSnake == "" &&
		r.RequestID == "" && r.RequestIDSnake == "" && r.MessageID == "" &&
		r.Model == "" && r.CostUSD == nil && r.CostAlt == nil &&
		r.Usage == nil && r.Message == nil
}
