package render

import (
	"context"
	"errors"
	"sync"
)

// NewSubmitter returns the provider wired into the render service. The
// sandbox submitter is the only one available so far, so a non-sandbox
// deployment refuses to start instead of accepting videos nothing will
// ever render.
func NewSubmitter(sandbox bool) (Submitter, error) {
	if !sandbox {
		return nil, errors.New("no render provider configured, enable sandbox mode")
	}
	return &NoopSubmitter{}, nil
}

// NoopSubmitter accepts every render request without contacting a
// provider. Used in sandbox mode; results then arrive through the webhook
// endpoints like they would from a real provider.
type NoopSubmitter struct {
	// Err, when set, is returned for every submission.
	Err error

	mu        sync.Mutex
	submitted []string
}

func (n *NoopSubmitter) Submit(_ context.Context, v *Video) (string, error) {
	if n.Err != nil {
		return "", n.Err
	}
	n.mu.Lock()
	n.submitted = append(n.submitted, v.ID)
	n.mu.Unlock()
	return "sandbox-" + v.ID, nil
}

// SubmittedIDs returns a copy of the video ids accepted so far.
func (n *NoopSubmitter) SubmittedIDs() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.submitted...)
}
