package sip

import (
	"fmt"
	"sync"
	"time"

	"github.com/emiago/sipgo/sip"
)

// registerWaitTimeout is the response timeout the registration loop
// tolerates (spec.md §4.2 step 2: "timeout 5 s → failure").
const registerWaitTimeout = 5 * time.Second

// rendezvous is the single-slot REGISTER-response handoff between the SIP
// listener (writer) and the registration loop (reader), keyed by Call-ID
// so concurrent registrations on different lines don't collide (spec.md
// §4.1 step "hand it to the registration state machine via a
// condition-variable rendezvous (one pending response slot)"; a buffered
// channel per Call-ID gives the same single-slot handoff without a
// separate mutex+condvar pair).
type rendezvous struct {
	mu      sync.Mutex
	waiters map[string]chan *sip.Response
}

func newRendezvous() *rendezvous {
	return &rendezvous{waiters: make(map[string]chan *sip.Response)}
}

// register opens a one-slot wait for callID. Must be called before the
// REGISTER is sent, to avoid a race with the listener delivering the
// response first.
func (r *rendezvous) register(callID string) chan *sip.Response {
	ch := make(chan *sip.Response, 1)
	r.mu.Lock()
	r.waiters[callID] = ch
	r.mu.Unlock()
	return ch
}

// unregister releases callID's slot without delivering a response, used
// when sending the REGISTER itself fails after the slot was opened.
func (r *rendezvous) unregister(callID string) {
	r.mu.Lock()
	delete(r.waiters, callID)
	r.mu.Unlock()
}

// deliver hands a REGISTER response to its waiter, if one is still
// registered. Called from the SIP listener loop.
func (r *rendezvous) deliver(callID string, res *sip.Response) {
	r.mu.Lock()
	ch, ok := r.waiters[callID]
	if ok {
		delete(r.waiters, callID)
	}
	r.mu.Unlock()

	if ok {
		ch <- res
	}
}

// wait blocks for callID's response up to registerWaitTimeout, cleaning
// up the slot either way.
func (r *rendezvous) wait(callID string, ch chan *sip.Response) (*sip.Response, error) {
	select {
	case res := <-ch:
		return res, nil
	case <-time.After(registerWaitTimeout):
		r.mu.Lock()
		delete(r.waiters, callID)
		r.mu.Unlock()
		return nil, fmt.Errorf("register response timeout for call-id %s", callID)
	}
}
