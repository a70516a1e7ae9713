// Package resource governs the limits shared by everything a store owns:
//
//   - Memory: page and query arenas reserve chunks against one budget
//     (non-blocking, fail-fast with ErrBudgetExceeded)
//   - Slots: background jobs such as dirty-page flushes wait for a slot
//   - IO: the disk pager waits on a token bucket before touching the file
//
// A nil *Controller is valid and imposes no limits:
//
//	var rc *resource.Controller
//	_ = rc.Reserve(1 << 20) // always nil
package resource
