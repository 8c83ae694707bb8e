package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ForInstance returns a child of log tagged with the instance id and, when
// set, its platform. A debug instance logs at Debug whatever the root level.
func ForInstance(log *zap.Logger, id, platform string, debug bool) *zap.Logger {
	if log == nil {
		log = zap.NewNop()
	}
	fields := []zap.Field{zap.String("instance_id", id)}
	if platform != "" {
		fields = append(fields, zap.String("platform", platform))
	}
	child := log.With(fields...)
	if !debug {
		return child
	}
	return child.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return &levelCore{Core: core, level: zapcore.DebugLevel}
	}))
}

// levelCore admits entries at or above level even when the wrapped core
// would drop them, writing them straight to that core.
type levelCore struct {
	zapcore.Core
	level zapcore.LevelEnabler
}

func (c *levelCore) Enabled(l zapcore.Level) bool {
	return c.level.Enabled(l) || c.Core.Enabled(l)
}

func (c *levelCore) With(fields []zapcore.Field) zapcore.Core {
	return &levelCore{Core: c.Core.With(fields), level: c.level}
}

func (c *levelCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Core.Enabled(ent.Level) {
		return c.Core.Check(ent, ce)
	}
	if c.level.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}
