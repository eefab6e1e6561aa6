package helpers

import (
	"fmt"
	"time"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

// SessionError is the base wrapped error for engine failures.
type SessionError struct {
	Message string
	Cause   error
}

func (e *SessionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *SessionError) Unwrap() error {
	return e.Cause
}

// ConfigurationError: invalid or incomplete configuration.
type ConfigurationError struct{ SessionError }

// StorageError: historical store access failed.
type StorageError struct{ SessionError }

// ProvisioningStepError: one execution step failed. Aborts the remaining
// steps of that operation only; never fatal to the session.
type ProvisioningStepError struct {
	SessionError
	Symbol string
	Step   string
}

// AllSymbolsFailedError: an entire session-start batch failed validation.
// Fatal: the session must not start.
type AllSymbolsFailedError struct {
	SessionError
	Attempted int
}

// LivenessError: a pipeline stage stopped keeping up in clock-driven mode
// (overrun ceiling exceeded). Fatal: ends the session.
type LivenessError struct {
	SessionError
	Stage    string
	Overruns int64
}

// -----------------------------------------------------------------------------
// Constructors
// -----------------------------------------------------------------------------

func NewProvisioningStepError(symbol, step string, cause error) *ProvisioningStepError {
	return &ProvisioningStepError{
		SessionError: SessionError{
			Message: fmt.Sprintf("provisioning step %s failed for %s", step, symbol),
			Cause:   cause,
		},
		Symbol: symbol,
		Step:   step,
	}
}

func NewAllSymbolsFailedError(attempted int) *AllSymbolsFailedError {
	return &AllSymbolsFailedError{
		SessionError: SessionError{
			Message: fmt.Sprintf("all %d symbols failed provisioning, session cannot start", attempted),
		},
		Attempted: attempted,
	}
}

func NewLivenessError(stage string, overruns int64) *LivenessError {
	return &LivenessError{
		SessionError: SessionError{
			Message: fmt.Sprintf("stage %s exceeded overrun ceiling (%d overruns)", stage, overruns),
		},
		Stage:    stage,
		Overruns: overruns,
	}
}

// -----------------------------------------------------------------------------
// Retry Logic
// -----------------------------------------------------------------------------

// RetryWithBackoff attempts to execute the operation up to maxRetries times
// with exponential backoff. Used around historical store reads.
func RetryWithBackoff(operation string, maxRetries int, baseDelay time.Duration, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
		}

		if attempt == maxRetries-1 {
			break
		}
		time.Sleep(baseDelay * (1 << attempt))
	}

	return &StorageError{SessionError{
		Message: fmt.Sprintf("%s failed after %d attempts", operation, maxRetries),
		Cause:   lastErr,
	}}
}
