package sink

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/avfile/logger"
	"github.com/xaionaro-go/avfile/types"
	"github.com/xaionaro-go/typing"
	"github.com/xaionaro-go/xsync"
)

type ReconfigState int

const (
	ReconfigStateStable = ReconfigState(iota)
	ReconfigStateRestartPending
	ReconfigStateRestarting
)

func (s ReconfigState) String() string {
	switch s {
	case ReconfigStateStable:
		return "stable"
	case ReconfigStateRestartPending:
		return "restart-pending"
	case ReconfigStateRestarting:
		return "restarting"
	default:
		return fmt.Sprintf("<unknown_reconfig_state_%d>", int(s))
	}
}

// reconfigurator orders session restarts on geometry changes. Requests
// come from the encode loop; the restarts are executed by Step from the
// tick processing, which holds the filter lock.
type reconfigurator struct {
	locker  xsync.Mutex
	state   ReconfigState
	pending typing.Optional[types.Geometry]
}

func (r *reconfigurator) State(ctx context.Context) ReconfigState {
	return xsync.DoR1(xsync.WithNoLogging(ctx, true), &r.locker, func() ReconfigState {
		return r.state
	})
}

// RequestRestart asks for the session to be rebuilt at the given geometry.
// Requests made while a restart is already pending replace its target.
// Returns true if the state changed to restart-pending.
func (r *reconfigurator) RequestRestart(ctx context.Context, geometry types.Geometry) bool {
	return xsync.DoR1(xsync.WithNoLogging(ctx, true), &r.locker, func() bool {
		if r.pending.IsSet() && r.pending.Get().Equal(geometry) {
			return false
		}
		r.pending = typing.Opt(geometry)
		if r.state != ReconfigStateStable {
			return false
		}
		r.state = ReconfigStateRestartPending
		logger.Debugf(ctx, "restart requested: %s", geometry)
		return true
	})
}

// Cancel forgets a pending request (e.g. the sink is being stopped anyway).
func (r *reconfigurator) Cancel(ctx context.Context) {
	r.locker.Do(ctx, func() {
		r.pending = typing.Optional[types.Geometry]{}
		if r.state == ReconfigStateRestartPending {
			r.state = ReconfigStateStable
		}
	})
}

// Step performs the pending restart, if any. A request that arrives while
// restarting to the same geometry is dropped; a request for another
// geometry leaves the controller restart-pending for the next Step.
func (r *reconfigurator) Step(
	ctx context.Context,
	restart func(ctx context.Context, geometry types.Geometry) error,
) (_err error) {
	geometry, ok := xsync.DoR2(xsync.WithNoLogging(ctx, true), &r.locker, func() (types.Geometry, bool) {
		if r.state != ReconfigStateRestartPending || !r.pending.IsSet() {
			return types.Geometry{}, false
		}
		r.state = ReconfigStateRestarting
		geometry := r.pending.Get()
		r.pending = typing.Optional[types.Geometry]{}
		return geometry, true
	})
	if !ok {
		return nil
	}
	logger.Debugf(ctx, "restarting at %s", geometry)
	defer func() { logger.Debugf(ctx, "/restarting at %s: %v", geometry, _err) }()

	err := restart(ctx, geometry)

	r.locker.Do(ctx, func() {
		if r.pending.IsSet() && r.pending.Get().Equal(geometry) {
			r.pending = typing.Optional[types.Geometry]{}
		}
		if r.pending.IsSet() {
			r.state = ReconfigStateRestartPending
		} else {
			r.state = ReconfigStateStable
		}
	})
	return err
}
