package cancel

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Sleeper waits for d or until ctx is done, whichever comes first.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep - a cancellable wait; the timer is stopped when ctx wins
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Requested reports whether ctx has been cancelled.
func Requested(ctx context.Context) bool {
	return ctx.Err() != nil
}

// CheckBeforeAttempt - cancellation check before a remote call is issued
func CheckBeforeAttempt(ctx context.Context, log zerolog.Logger, submissionID string, attempt int) bool {
	if !Requested(ctx) {
		return false
	}
	log.Info().Str("submission_id", submissionID).Int("attempt", attempt).Msg("🛑 Submission cancelled, skipping attempt")
	return true
}

// CheckAfterAttempt - cancellation check once an attempt has produced an
// outcome; a cancelled submission discards it
func CheckAfterAttempt(ctx context.Context, log zerolog.Logger, submissionID string, attempt int) bool {
	if !Requested(ctx) {
		return false
	}
	log.Info().Str("submission_id", submissionID).Int("attempt", attempt).Msg("🛑 Submission cancelled after attempt, discarding outcome")
	return true
}

// CheckBeforeRetry - cancellation check after the backoff wait
func CheckBeforeRetry(ctx context.Context, log zerolog.Logger, submissionID string) bool {
	if !Requested(ctx) {
		return false
	}
	log.Info().Str("submission_id", submissionID).Msg("🛑 Submission cancelled, skipping retry")
	return true
}
