package logbuf

import (
	"context"

	"github.com/sirupsen/logrus"
)

// ComponentField is the logrus field holding the emitting component.
const ComponentField = "component"

// Hook feeds logrus entries into a Buffer.
type Hook struct {
	buf *Buffer
}

var _ logrus.Hook = (*Hook)(nil)

// NewHook creates a hook writing to buf.
func NewHook(buf *Buffer) *Hook {
	return &Hook{buf: buf}
}

// Levels implements logrus.Hook.
func (h *Hook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire implements logrus.Hook.
func (h *Hook) Fire(e *logrus.Entry) error {
	component, _ := e.Data[ComponentField].(string)

	var data map[string]any

	if len(e.Data) > 0 {
		fields := make(map[string]any, len(e.Data))

		for k, v := range e.Data {
			if k == ComponentField {
				continue
			}

			fields[k] = v
		}

		if len(fields) > 0 {
			data = Redact(fields)
		}
	}

	ctx := e.Context
	if ctx == nil {
		ctx = context.Background()
	}

	return h.buf.Append(ctx, Entry{
		Timestamp: e.Time.UTC(),
		Level:     levelName(e.Level),
		Component: component,
		Message:   e.Message,
		Data:      data,
	})
}

func levelName(l logrus.Level) string {
	switch l {
	case logrus.TraceLevel, logrus.DebugLevel:
		return LevelDebug
	case logrus.InfoLevel:
		return LevelInfo
	case logrus.WarnLevel:
		return LevelWarn
	default:
		return LevelError
	}
}
