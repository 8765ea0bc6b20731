package supervisor

import (
	"os"
	"syscall"
)

// SignalClass buckets the OS signals the supervisor reacts to.
type SignalClass int

const (
	// ClassUnknown covers signals the supervisor does not relay.
	ClassUnknown SignalClass = iota
	// ClassInterrupt is an interactive interrupt (Ctrl+C).
	ClassInterrupt
	// ClassTerminate is a polite, non-interactive shutdown request.
	ClassTerminate
)

// relayTable maps incoming signals to their relay class. It is an
// explicit table so the relay decision can be exercised in tests without
// real OS signal delivery.
var relayTable = map[os.Signal]SignalClass{
	syscall.SIGINT:  ClassInterrupt,
	syscall.SIGTERM: ClassTerminate,
	syscall.SIGHUP:  ClassTerminate,
}

// classOf returns the relay class for sig. Unlisted signals map to
// ClassUnknown and are dropped.
func classOf(sig os.Signal) SignalClass {
	return relayTable[sig]
}

// RelaySignals returns the signals the supervisor subscribes to. Pass the
// result to signal.Notify.
func RelaySignals() []os.Signal {
	sigs := make([]os.Signal, 0, len(relayTable))
	for sig := range relayTable {
		sigs = append(sigs, sig)
	}
	return sigs
}
