package session

import (
	"context"

	"github.com/topproz/leadchat/internal/leads"
)

// ProfileTask is an in-flight pro-profile fetch, started when the user clicks
// a pro button and awaited when the booking payload is built. Making the
// fetch an explicit task means the booking path blocks until the profile is
// known instead of racing a background fill.
type ProfileTask struct {
	done    chan struct{}
	profile *leads.ProProfile
	err     error
}

func newProfileTask() *ProfileTask {
	return &ProfileTask{done: make(chan struct{})}
}

func (t *ProfileTask) complete(profile *leads.ProProfile, err error) {
	t.profile = profile
	t.err = err
	close(t.done)
}

// Wait blocks until the fetch finishes or ctx expires.
func (t *ProfileTask) Wait(ctx context.Context) (*leads.ProProfile, error) {
	select {
	case <-t.done:
		return t.profile, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
