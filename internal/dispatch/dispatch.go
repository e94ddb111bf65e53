// Package dispatch implements the shared kind-to-handler concerns every
// routed object needs (spec component C9): the "Unknown operation" default
// reply, and a panic-recovery wrapper so one misbehaving handler (native or
// scripted) cannot take down the pump.
package dispatch

import (
	"fmt"

	"github.com/worldforge/worldcore/internal/op"
	"go.uber.org/zap"
)

// UnknownOperation builds the standard Error reply for a kind nobody
// installed a handler for (spec.md §4.9, §7).
func UnknownOperation(o op.Operation) op.Operation {
	return o.Error("Unknown operation")
}

// IllegalFrom builds the standard Error reply for a Connection receiving a
// "from" outside its scope (spec.md §4.8, §7).
func IllegalFrom(o op.Operation) op.Operation {
	return o.Error("From is illegal")
}

// SafeCall runs fn with panic recovery, grounded on the teacher's
// packet.Registry.safeCall (internal/net/packet/registry.go): a panicking
// handler is logged and treated as "operation dropped" rather than taking
// the whole pump down (spec.md §7 Go-native supplement). label identifies
// the call site (usually the destination entity's string id) for the log.
func SafeCall(log *zap.Logger, label string, fn func() []op.Operation) (out []op.Operation) {
	defer func() {
		if r := recover(); r != nil {
			if log != nil {
				log.Error("recovered panic dispatching operation",
					zap.String("target", label),
					zap.Any("panic", r),
				)
			}
			out = nil
		}
	}()
	return fn()
}

// Fatal panics with a message identifying an invariant violation (spec.md
// §7: "crash-fast rather than corrupt the containment index"). Kept as a
// named helper so call sites read as an intentional policy, not a stray
// panic.
func Fatal(format string, args ...any) {
	panic(fmt.Sprintf(format, args...))
}
