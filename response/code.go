package response

// ErrorCode is the stable, machine-readable part of an error body.
type ErrorCode string

const (
	InvalidRequest     ErrorCode = "bad_request"
	NotFound           ErrorCode = "not_found"
	PreconditionFailed ErrorCode = "precondition_failed"
	PreconditionNeeded ErrorCode = "precondition_required"
	InternalError      ErrorCode = "server_error"

	// Authentication failures use the auth error kind as their code
	// (expired_token, no_public_key, ...). Authorization denials use this one.
	Unauthorized ErrorCode = "unauthorized"
	OutdatedCLI  ErrorCode = "outdated_cli"
)
