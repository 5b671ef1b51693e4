package mocks

import (
	"time"
)

// CompletedToken is an MQTT token that has already finished with Err.
type CompletedToken struct {
	Err error
}

// Wait waits for the token to complete
func (t *CompletedToken) Wait() bool { return true }

// WaitTimeout waits for the token to complete or timeout
func (t *CompletedToken) WaitTimeout(time.Duration) bool { return true }

// Done channel returns the done channel for the token
func (t *CompletedToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// Error returns the error associated with the token
func (t *CompletedToken) Error() error { return t.Err }
