package services

import "context"

// persistentContext keeps request values but drops cancellation, for work that must
// finish after the handler returns (run bookkeeping, queued scans).
func persistentContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return context.WithoutCancel(ctx)
}
