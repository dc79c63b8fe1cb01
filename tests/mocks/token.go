package mocks

import "time"

// CompletedToken is an mqtt.Token that has already finished with Err.
type CompletedToken struct {
	Err error
}

// NewCompletedToken returns a finished token carrying err.
func NewCompletedToken(err error) *CompletedToken {
	return &CompletedToken{Err: err}
}

func (t *CompletedToken) Wait() bool                     { return true }
func (t *CompletedToken) WaitTimeout(time.Duration) bool { return true }
func (t *CompletedToken) Error() error                   { return t.Err }

func (t *CompletedToken) Done() <-chan struct{} {
	done := make(chan struct{})
	close(done)
	return done
}
