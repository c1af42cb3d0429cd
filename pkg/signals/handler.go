package signals

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/mudler/xlog"
)

var (
	signalHandlers      []func()
	signalHandlersMutex sync.Mutex
	signalHandlersOnce  sync.Once
)

// RegisterGracefulTerminationHandler runs fn on the first SIGINT or SIGTERM.
// A second signal exits the process immediately.
func RegisterGracefulTerminationHandler(fn func()) {
	signalHandlersOnce.Do(func() {
		c := make(chan os.Signal, 2)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		go signalHandler(c)
	})

	signalHandlersMutex.Lock()
	defer signalHandlersMutex.Unlock()
	signalHandlers = append(signalHandlers, fn)
}

// Context returns a copy of parent that is cancelled on the first
// termination signal.
func Context(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	RegisterGracefulTerminationHandler(cancel)
	return ctx, cancel
}

func signalHandler(c chan os.Signal) {
	sig := <-c
	xlog.Info("termination signal received, shutting down", "signal", sig.String())

	signalHandlersMutex.Lock()
	handlers := append([]func(){}, signalHandlers...)
	signalHandlersMutex.Unlock()
	for _, fn := range handlers {
		fn()
	}

	sig = <-c
	xlog.Warn("second termination signal received, exiting", "signal", sig.String())
	os.Exit(1)
}
