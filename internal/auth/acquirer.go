// Package auth drives a site session to an authenticated state within a deadline.
//
// The Acquirer probes the session, optionally tries an automated login once, opens a
// login surface once, and then polls while a human completes sign-in out of band.
// Every hook is best-effort: faults in hooks degrade to their neutral value.
package auth

import (
	"context"
	"time"

	"github.com/rewired-gh/otawatch/internal/logger"
)

// Check is a session predicate. It reports false on any internal fault.
type Check func() bool

// Probe is the two-tier session predicate pair. Light must not navigate; Heavy may
// navigate and is authoritative.
type Probe struct {
	Light Check
	Heavy Check
}

// Hooks binds a site's session indicators and login helpers.
// NavigateLoginOnce and AutoLogin are optional.
type Hooks struct {
	Probe
	NavigateLoginOnce func() error
	AutoLogin         func() (bool, error)
}

// Options controls the manual wait phase.
type Options struct {
	Wait      time.Duration
	Poll      time.Duration
	LightMode bool
	// Progress receives the whole seconds left before each sleep.
	Progress func(secondsRemaining int)
}

// State is a step of the acquisition state machine.
type State int

const (
	Unchecked State = iota
	Checking
	AutoLoginAttempted
	AwaitingManual
	Confirmed
	TimedOut
	Cancelled
)

func (s State) String() string {
	switch s {
	case Unchecked:
		return "unchecked"
	case Checking:
		return "checking"
	case AutoLoginAttempted:
		return "auto_login_attempted"
	case AwaitingManual:
		return "awaiting_manual"
	case Confirmed:
		return "confirmed"
	case TimedOut:
		return "timed_out"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Clock abstracts time so the wait loop can be driven in tests.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Acquirer runs the login acquisition state machine.
type Acquirer struct {
	clock Clock
	state State
}

// NewAcquirer creates an Acquirer on the wall clock.
func NewAcquirer() *Acquirer {
	return &Acquirer{clock: realClock{}}
}

// NewAcquirerWithClock creates an Acquirer on the given clock.
func NewAcquirerWithClock(clock Clock) *Acquirer {
	return &Acquirer{clock: clock}
}

// State returns the state the last Acquire call finished in.
func (a *Acquirer) State() State {
	return a.state
}

// Acquire returns true once the session is authoritatively confirmed as logged in,
// and false when the wait deadline passes or ctx is cancelled. It never fails.
func (a *Acquirer) Acquire(ctx context.Context, hooks Hooks, opts Options) bool {
	a.state = Unchecked
	poll := opts.Poll
	if poll < time.Second {
		poll = time.Second
	}

	a.transition(Checking)
	if ok, done := a.pollOnce(hooks.Probe, opts.LightMode); done {
		return ok
	}

	if hooks.AutoLogin != nil {
		a.transition(AutoLoginAttempted)
		if guardAutoLogin(hooks.AutoLogin) {
			return a.finish(guardCheck(hooks.Heavy))
		}
		logger.Debug("Automated login did not succeed, falling back to manual login")
	}

	if hooks.NavigateLoginOnce != nil {
		guardHook("navigate login", hooks.NavigateLoginOnce)
	}

	a.transition(AwaitingManual)
	deadline := a.clock.Now().Add(opts.Wait)
	for {
		now := a.clock.Now()
		if !now.Before(deadline) {
			break
		}
		remaining := deadline.Sub(now)
		if opts.Progress != nil {
			guardProgress(opts.Progress, int(remaining/time.Second))
		}
		if err := a.clock.Sleep(ctx, min(poll, max(time.Second, remaining))); err != nil {
			logger.Info("Login wait interrupted: %v", err)
			a.transition(Cancelled)
			return false
		}
		if ok, done := a.pollOnce(hooks.Probe, opts.LightMode); done {
			return ok
		}
	}

	a.transition(TimedOut)
	return false
}

// pollOnce runs one probe round. done reports whether the result is final: a light
// success is always final because it is settled by the heavy confirmation.
func (a *Acquirer) pollOnce(probe Probe, lightMode bool) (ok, done bool) {
	if lightMode {
		if !guardCheck(probe.Light) {
			return false, false
		}
		return a.finish(guardCheck(probe.Heavy)), true
	}
	if guardCheck(probe.Heavy) {
		return a.finish(true), true
	}
	return false, false
}

func (a *Acquirer) finish(confirmed bool) bool {
	if confirmed {
		a.transition(Confirmed)
	} else {
		a.transition(TimedOut)
	}
	return confirmed
}

func (a *Acquirer) transition(next State) {
	logger.Debug("Login state %s -> %s", a.state, next)
	a.state = next
}
