package event

import (
	"context"
	"log/slog"
)

// Log writes every event from sub to logger until ctx is done or the
// subscription closes. Failures log at warn level, everything else at debug.
func Log(ctx context.Context, sub *Subscription, logger *slog.Logger) {
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-sub.C():
			if !ok {
				return
			}
			msg := Describe(e)
			switch e := e.(type) {
			case Failed:
				logger.Warn("operation failed", "op", e.Op.String(), "error", e.Message)
			case NoResult:
				logger.Info("operation had no result", "op", e.Op.String())
			default:
				logger.Debug("event", "type", msg.Type, "id", msg.ID)
			}
		}
	}
}
