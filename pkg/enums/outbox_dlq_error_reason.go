package enums

type DLQErrorReason string

const (
	DLQReasonMaxAttempts  DLQErrorReason = "max_attempts"
	DLQReasonNonRetryable DLQErrorReason = "non_retryable"
	DLQReasonMalformed    DLQErrorReason = "malformed"
)

var validDLQErrorReasons = []DLQErrorReason{
	DLQReasonMaxAttempts,
	DLQReasonNonRetryable,
	DLQReasonMalformed,
}

func (r DLQErrorReason) IsValid() bool {
	for _, candidate := range validDLQErrorReasons {
		if candidate == r {
			return true
		}
	}
	return false
}
