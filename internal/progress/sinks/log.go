package sinks

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/JakeFAU/business-discovery/internal/progress"
	"github.com/JakeFAU/business-discovery/internal/publisher"
)

// LogSink writes one log line per run event. Step chatter goes to debug,
// sessions and completions to info, failures to warn.
type LogSink struct {
	log *zap.Logger
}

// NewLogSink returns a LogSink; a nil logger discards everything.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{log: logger.Named("runs")}
}

// Consume logs the batch in order. It never fails.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		level, msg, fields := describe(evt)
		if ce := s.log.Check(level, msg); ce != nil {
			ce.Write(append(fields, zap.String("run_id", evt.RunID), zap.Time("ts", evt.TS))...)
		}
	}
	return nil
}

func describe(evt progress.Event) (zapcore.Level, string, []zap.Field) {
	switch data := evt.Data.(type) {
	case progress.StepData:
		return zapcore.DebugLevel, "run step", []zap.Field{zap.String("step", data.Step), zap.String("detail", data.Message)}
	case progress.SessionData:
		return zapcore.InfoLevel, "browser session attached", []zap.Field{
			zap.String("session_id", data.SessionID),
			zap.String("session_url", data.SessionURL),
		}
	case publisher.ProfileCompleted:
		return zapcore.InfoLevel, "run completed", []zap.Field{
			zap.String("business_id", data.BusinessID),
			zap.String("provider", data.Provider),
			zap.Int("tasks", data.Tasks),
			zap.Bool("mock_analysis", data.MockAnalysis),
		}
	case progress.ErrorData:
		return zapcore.WarnLevel, "run failed", []zap.Field{zap.String("detail", data.Message)}
	default:
		return zapcore.DebugLevel, "run event", []zap.Field{zap.String("event", string(evt.Name))}
	}
}

// Close is a no-op.
func (s *LogSink) Close(context.Context) error {
	return nil
}
