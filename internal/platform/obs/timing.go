package obs

import (
	"context"
	"time"

	"shipment-risk-service/internal/platform/logging"
)

// Time logs the duration of an operation. Use as:
//
//	defer obs.Time(ctx, "op")(&err)
func Time(ctx context.Context, name string) func(errp *error) {
	start := time.Now()
	log := logging.FromContext(ctx)

	return func(errp *error) {
		dur := time.Since(start)

		if errp != nil && *errp != nil {
			log.Warn(ctx, "operation failed",
				logging.String("op", name),
				logging.Int64("dur_ms", dur.Milliseconds()),
				logging.Err(*errp),
			)
			return
		}
		log.Debug(ctx, "operation done",
			logging.String("op", name),
			logging.Int64("dur_ms", dur.Milliseconds()),
		)
	}
}
