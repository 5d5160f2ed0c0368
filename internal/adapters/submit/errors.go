package submit

import "errors"

// Sentinel error kinds for this package.
var (
	// ErrSubmissionFailure reports that a remote collaborator rejected or
	// did not receive a submission.
	ErrSubmissionFailure = errors.New("submission failed")
)
