//go:build !tinygo

package nrf24node

import "sync"

// handlerLock takes mu for the IRQ handler. On hosted platforms the handler
// runs on the pin watcher goroutine and shares the main loop's locks.
func handlerLock(mu *sync.Mutex) (unlock func()) {
	mu.Lock()
	return mu.Unlock
}
