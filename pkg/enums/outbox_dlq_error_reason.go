package enums

// OutboxDLQErrorReason records why an event was moved to the dead letter table.
type OutboxDLQErrorReason string

const (
	// OutboxDLQReasonMaxAttempts: every publish attempt failed.
	OutboxDLQReasonMaxAttempts OutboxDLQErrorReason = "max_attempts"
	// OutboxDLQReasonNonRetryable: the row can never be published as stored.
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

var validDLQReasons = []OutboxDLQErrorReason{OutboxDLQReasonMaxAttempts, OutboxDLQReasonNonRetryable}

func (r OutboxDLQErrorReason) IsValid() bool {
	_, err := parse(validDLQReasons, "dlq reason", string(r))
	return err == nil
}
