package source

import (
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"ccstats/internal/model"
	"ccstats/internal/pricing"
)

const (
	// UnknownSession is the sentinel stored when a record carries no
	// usable session identifier.
	UnknownSession = "unknown"

	// UnknownProject is the placeholder for records without a project path.
	UnknownProject = "unknown project"

	syntheticModel = "<synthetic>"
)

// Normalizer converts raw records into canonical usage events, applying the
// drop filters and fallback chains for every historical schema version.
type Normalizer struct {
	pricing *pricing.Table
	logger  *zap.Logger
	loc     *time.Location
	now     func() time.Time
}

// NewNormalizer builds a normalizer pricing events against the given table.
func NewNormalizer(table *pricing.Table, logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{
		pricing: table,
		logger:  logger,
		loc:     time.Local,
		now:     time.Now,
	}
}

// Normalize converts one raw record into a usage event, or nil when the
// record is filtered out. Two independent drop filters apply: a record with
// no valid session, zero tokens, and zero cost carries no signal; a record
// whose model is empty, "unknown", or synthetic is unusable.
func (n *Normalizer) Normalize(rec *RawRecord, projectPath, sourceFile string) *model.UsageEvent {
	if rec == nil {
		return nil
	}

	messageType := rec.Type
	if messageType == "" {
		messageType = rec.MessageType
	}

	usage := rec.Usage
	if usage == nil && rec.Message != nil {
		usage = rec.Message.Usage
	}

	var inputTokens, outputTokens, cacheWrite, cacheRead int64
	if usage != nil {
		inputTokens = usage.InputTokens
		outputTokens = usage.OutputTokens
		cacheWrite = usage.CacheWrite()
		cacheRead = usage.CacheRead()
	}
	totalTokens := inputTokens + outputTokens + cacheWrite + cacheRead

	sessionID := rec.SessionID
	if sessionID == "" {
		sessionID = rec.SessionIDSnake
	}
	hasValidSession := sessionID != "" && sessionID != UnknownSession
	if !hasValidSession {
		sessionID = UnknownSession
	}

	rawCost := rec.CostUSD
	if rawCost == nil {
		rawCost = rec.CostAlt
	}

	if !hasValidSession && totalTokens == 0 && (rawCost == nil || *rawCost == 0) {
		return nil
	}

	modelName := rec.Model
	if modelName == "" && rec.Message != nil {
		modelName = rec.Message.Model
	}
	if modelName == "" || modelName == UnknownSession || modelName == syntheticModel {
		return nil
	}

	requestID := rec.RequestID
	if requestID == "" {
		requestID = rec.RequestIDSnake
	}
	if requestID == "" {
		requestID = rec.MessageID
	}

	messageID := rec.MessageID
	if messageID == "" && rec.Message != nil {
		messageID = rec.Message.ID
	}

	ts, parsed := ParseTimestamp(rec.Timestamp)
	if !parsed {
		ts, parsed = ParseTimestamp(rec.Date)
	}
	if !parsed {
		ts = n.now()
		n.logger.Debug("record has no parseable timestamp, using ingestion time",
			zap.String("source_file", sourceFile),
			zap.String("session_id", sessionID))
	}

	projectName := UnknownProject
	if projectPath != "" {
		if base := path.Base(strings.TrimRight(projectPath, "/")); base != "" && base != "." && base != "/" {
			projectName = base
		}
	}

	// The prefix fallback inside DeriveDateString works off the raw
	// timestamp string; the date field substitutes only when it is absent.
	rawTS := rec.Timestamp
	if rawTS == "" {
		rawTS = rec.Date
	}
	dateString := DeriveDateString(rawTS, ts, parsed, n.now(), n.loc)

	var cost float64
	if rawCost != nil {
		cost = *rawCost
	} else {
		cost, _ = n.pricing.Price(modelName, inputTokens, outputTokens, cacheWrite, cacheRead)
	}

	return &model.UsageEvent{
		Timestamp:        ts,
		DateString:       dateString,
		Model:            modelName,
		InputTokens:      inputTokens,
		OutputTokens:     outputTokens,
		CacheWriteTokens: cacheWrite,
		CacheReadTokens:  cacheRead,
		Cost:             cost,
		SessionID:        sessionID,
		ProjectPath:      projectPath,
		ProjectName:      projectName,
		RequestID:        requestID,
		MessageID:        messageID,
		MessageType:      messageType,
		SourceFile:       sourceFile,
	}
}
