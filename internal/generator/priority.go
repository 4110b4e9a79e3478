package generator

import (
	"runtime"

	"golang.org/x/sys/unix"

	"github.com/cat2151/ym2151play/internal/logging"
)

// proAudioNiceValue mirrors the generator thread's target scheduling
// priority. Linux nice values run -20 (highest) to 19 (lowest); -11 is a
// practical "pro audio" style boost that doesn't require root.
const proAudioNiceValue = -11

// PriorityGuard pins the calling goroutine to its OS thread and attempts to
// raise that thread's scheduling priority for the duration of its scope.
// Release restores the prior priority and unpins the thread. Acquiring on a
// platform or under privileges where the priority call fails is logged, not
// fatal: the generator still runs, just without the boost.
type PriorityGuard struct {
	applied  bool
	original int
}

// AcquirePriorityGuard locks the current goroutine to its OS thread and
// attempts the priority boost. Call Release when the generator loop exits.
func AcquirePriorityGuard() *PriorityGuard {
	runtime.LockOSThread()

	g := &PriorityGuard{}

	original, err := unix.Getpriority(unix.PRIO_PROCESS, 0)
	if err != nil {
		logging.Warn("priority guard: read current priority failed", "err", err)
		return g
	}
	// Getpriority returns 20-nice per the Linux syscall convention.
	g.original = 20 - original

	if err := unix.Setpriority(unix.PRIO_PROCESS, 0, proAudioNiceValue); err != nil {
		logging.Warn("priority guard: raise priority failed, continuing unboosted", "err", err)
		return g
	}
	g.applied = true
	return g
}

// Release reverts the priority change, if one was applied, and unpins the
// goroutine from its OS thread.
func (g *PriorityGuard) Release() {
	if g.applied {
		if err := unix.Setpriority(unix.PRIO_PROCESS, 0, g.original); err != nil {
			logging.Warn("priority guard: revert priority failed", "err", err)
		}
	}
	runtime.UnlockOSThread()
}
