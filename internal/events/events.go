package events

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Type string

const (
	TickStart        Type = "tick_start"
	TickEnd          Type = "tick_end"
	OrderFetched     Type = "order_fetched"
	OfferSent        Type = "offer_sent"
	RoundStart       Type = "round_start"
	CandidatesFound  Type = "candidates_found"
	NoCandidates     Type = "no_candidates"
	EscalationLogist Type = "escalation_logist"
	EscalationAdmin  Type = "escalation_admin"
	DeferredWake     Type = "deferred_wake"
	Error            Type = "error"
)

// Log writes every distribution decision twice: as a structured record for
// tooling and as a plain line in the trace log for whoever is on call.
type Log struct {
	logger *zap.Logger
	trace  *zap.SugaredLogger
}

func New(logger *zap.Logger, trace *zap.Logger) *Log {
	l := &Log{logger: logger}
	if trace != nil {
		l.trace = trace.Sugar()
	}
	return l
}

// NewTraceLogger builds the console-encoded trace sink.
func NewTraceLogger(paths ...string) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.Encoding = "console"
	cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	cfg.DisableStacktrace = true
	cfg.OutputPaths = paths
	return cfg.Build()
}

func (l *Log) Emit(t Type, fields ...zap.Field) {
	l.logger.Info(string(t), append([]zap.Field{zap.String("event", string(t))}, fields...)...)
	l.traceFields(t, fields)
}

func (l *Log) Fail(err error, fields ...zap.Field) {
	all := append([]zap.Field{zap.String("event", string(Error)), zap.Error(err)}, fields...)
	l.logger.Error(string(Error), all...)
	l.traceFields(Error, append(fields, zap.Error(err)))
}

// Tracef writes only to the human-readable trace log.
func (l *Log) Tracef(format string, args ...any) {
	if l.trace == nil {
		return
	}
	l.trace.Infof(format, args...)
}

func (l *Log) traceFields(t Type, fields []zap.Field) {
	if l.trace == nil {
		return
	}
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range fields {
		f.AddTo(enc)
	}
	line := string(t)
	for _, f := range fields {
		line += fmt.Sprintf(" %s=%v", f.Key, enc.Fields[f.Key])
	}
	l.trace.Info(line)
}
