package emit

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapEmitter logs events through a zap.Logger.
//
// node_error and run_error are logged at warn and error level respectively;
// everything else is logged at debug, so a production logger only surfaces
// failures.
type ZapEmitter struct {
	logger *zap.Logger
}

// NewZapEmitter wraps logger. A nil logger selects zap.NewNop.
func NewZapEmitter(logger *zap.Logger) *ZapEmitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapEmitter{logger: logger.With(zap.String("component", "graph"))}
}

// Emit implements Emitter.
func (z *ZapEmitter) Emit(event Event) {
	level := zapcore.DebugLevel
	switch event.Msg {
	case "node_error":
		level = zapcore.WarnLevel
	case "run_error":
		level = zapcore.ErrorLevel
	}
	ce := z.logger.Check(level, event.Msg)
	if ce == nil {
		return
	}

	fields := make([]zap.Field, 0, 3+len(event.Meta))
	fields = append(fields,
		zap.String("run_id", event.RunID),
		zap.Int("step", event.Step),
	)
	if event.NodeID != "" {
		fields = append(fields, zap.String("node", event.NodeID))
	}
	for k, v := range event.Meta {
		fields = append(fields, zap.Any(k, v))
	}
	ce.Write(fields...)
}
