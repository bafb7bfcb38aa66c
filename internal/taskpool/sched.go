package taskpool

import "runtime"

// runtimeGosched yields the current goroutine once, giving a freshly spawned
// worker a chance to reach its channel receive before a submit's send.
func runtimeGosched() {
	runtime.Gosched()
}
