package supervisor

import "github.com/coreos/go-systemd/v22/daemon"

// ReadyNotifier reports lifecycle milestones to the service manager.
type ReadyNotifier interface {
	Ready()
	Stopping()
}

// SdNotifier implements ReadyNotifier with sd_notify(3). Outside a
// systemd unit (no NOTIFY_SOCKET) the calls are no-ops.
type SdNotifier struct{}

func (SdNotifier) Ready() {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
}

func (SdNotifier) Stopping() {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
}

type nopNotifier struct{}

func (nopNotifier) Ready()    {}
func (nopNotifier) Stopping() {}
