// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package panics

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/epic-project/epicd/logs"
)

// HandlePanic recovers a panic on the calling goroutine, logs it along with
// its stack trace, runs an optional extra handler, and returns: the panic is
// not re-raised, so the goroutine ends and the process keeps running. It is meant to
// be deferred at the top of every pool worker and long-running thread
// (solver workers, the DAG verify goroutine, the OBC executor).
func HandlePanic(log *logs.Logger, goroutineName string, extraHandler func(err interface{})) {
	err := recover()
	if err == nil {
		return
	}

	log.Criticalf("Goroutine %s panicked: %s", goroutineName, err)
	fmt.Fprintf(os.Stderr, "Fatal panic in %s: %v\n%s\n", goroutineName, err, debug.Stack())

	if extraHandler != nil {
		extraHandler(err)
	}
}

// GoroutineWrapperFunc returns a spawn helper that runs f on a new
// goroutine under HandlePanic, so every package can declare its own
// `var spawn = panics.GoroutineWrapperFunc(log)` instead of writing the
// defer/recover boilerplate at every call site.
func GoroutineWrapperFunc(log *logs.Logger) func(goroutineName string, f func()) {
	return func(goroutineName string, f func()) {
		go func() {
			defer HandlePanic(log, goroutineName, nil)
			f()
		}()
	}
}
