package metrics

import "go.uber.org/zap"

// ZapHook logs every event at debug level.
func ZapHook(l *zap.Logger) EventFn {
	return func(id uint32, name string, ev Event) {
		l.Debug("op event",
			zap.Uint32("op_id", id),
			zap.String("op", name),
			zap.Stringer("event", ev),
		)
	}
}
