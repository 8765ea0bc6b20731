package supervisor

import (
	"fmt"
	"time"

	"github.com/driftmail/driftmail/internal/executor"
)

// RestartMode decides whether an exited child is respawned.
type RestartMode string

const (
	// RestartNever lets the supervisor terminate with the child. This is
	// the default: the launcher is a transparent relay, not a babysitter.
	RestartNever RestartMode = "never"
	// RestartOnFailure respawns after a non-zero exit or a signal death.
	RestartOnFailure RestartMode = "on-failure"
	// RestartAlways respawns after any exit.
	RestartAlways RestartMode = "always"
)

// ParseRestartMode validates a mode string from flags or config.
func ParseRestartMode(s string) (RestartMode, error) {
	switch RestartMode(s) {
	case RestartNever, RestartOnFailure, RestartAlways:
		return RestartMode(s), nil
	}
	return "", fmt.Errorf("unknown restart mode %q (want never, on-failure or always)", s)
}

// RestartPolicy controls respawns and the backoff between them.
type RestartPolicy struct {
	Mode RestartMode

	// BackoffMin is the delay before the first respawn. It doubles on
	// every consecutive respawn up to BackoffMax.
	BackoffMin time.Duration
	BackoffMax time.Duration
	// BackoffReset clears the respawn streak once a child has run at
	// least this long.
	BackoffReset time.Duration
}

// DefaultRestartPolicy returns the policy used when none is configured.
func DefaultRestartPolicy() RestartPolicy {
	return RestartPolicy{
		Mode:         RestartNever,
		BackoffMin:   time.Second,
		BackoffMax:   30 * time.Second,
		BackoffReset: time.Minute,
	}
}

// shouldRestart reports whether res warrants a respawn under the policy.
func (p RestartPolicy) shouldRestart(res executor.Result) bool {
	switch p.Mode {
	case RestartAlways:
		return true
	case RestartOnFailure:
		return res.Code() != 0 || res.Signal != ""
	default:
		return false
	}
}

// backoff tracks consecutive respawns.
type backoff struct {
	policy RestartPolicy
	streak int
}

// next returns the delay before the upcoming respawn, given how long the
// previous run lasted.
func (b *backoff) next(ranFor time.Duration) time.Duration {
	if b.policy.BackoffReset > 0 && ranFor >= b.policy.BackoffReset {
		b.streak = 0
	}
	d := b.policy.BackoffMin
	for i := 0; i < b.streak && d < b.policy.BackoffMax; i++ {
		d *= 2
	}
	if d > b.policy.BackoffMax {
		d = b.policy.BackoffMax
	}
	b.streak++
	return d
}
