package supervisor

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/ByteMirror/overseer/log"
)

// HandleSignals routes the given signals (SIGINT and SIGTERM by default) to
// Shutdown. The signal goroutine only starts Shutdown and returns; callers
// wait on Done. After the first signal the default disposition is restored,
// so a second interrupt ends the process immediately.
//
// The returned stop function detaches the handler.
func (s *Supervisor) HandleSignals(sigs ...os.Signal) (stop func()) {
	if len(sigs) == 0 {
		sigs = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)

	quit := make(chan struct{})
	go func() {
		defer signal.Stop(ch)
		select {
		case sig := <-ch:
			log.WarningLog.Printf("received %s, draining subagents", sig)
			go s.Shutdown()
		case <-quit:
		case <-s.done:
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(quit) })
	}
}
