package ports

// CommentIntake defines the interface the host platform reaches the
// gateway through.
type CommentIntake interface {
	// Start starts accepting submissions and moderation calls.
	Start() error

	// Stop shuts the intake down.
	Stop() error
}
