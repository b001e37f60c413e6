package errors

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrEmptyKey     = errors.New("empty key")
	ErrInvalidData  = errors.New("invalid data type")
	ErrEntityExists = errors.New("entity already exists")

	// Round coordination taxonomy.
	ErrNoNewUploads        = errors.New("no new uploads for the current round")
	ErrPublishConflict     = errors.New("concurrent publish for the same parent version")
	ErrArtifactLoad        = errors.New("weight artifact could not be loaded")
	ErrEvalAlreadyRecorded = errors.New("evaluation result already recorded")
	ErrEvaluationFailed    = errors.New("model evaluation failed")
	ErrLedgerSubmission    = errors.New("ledger submission failed")
)
