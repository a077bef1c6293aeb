package utils

// Guard runs a cleanup function when an acquisition fails partway through. A function that takes
// a lock (or allocates any resource it hands back to the caller) creates a Guard right after the
// acquisition, defers OnFail, and calls Success once it is about to return the resource:
//
//	release := acquire()
//	guard := NewGuard(release)
//	defer guard.OnFail()
//	if err := configure(); err != nil {
//		return nil, err // release runs
//	}
//	guard.Success()
//	return handle, nil // release does not run
type Guard struct {
	OnFail  func()
	success bool
}

// NewGuard returns a Guard that calls onFailCleanup from OnFail unless Success was called first.
func NewGuard(onFailCleanup func()) *Guard {
	ret := &Guard{}
	ret.OnFail = func() {
		if !ret.success {
			onFailCleanup()
		}
	}
	return ret
}

// Success marks the acquisition as complete; the cleanup will no longer run.
func (guard *Guard) Success() {
	guard.success = true
}
