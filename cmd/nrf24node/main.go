// Command nrf24node runs the sensor node: it listens for 8-byte frames from
// the base station and answers every frame made of sentinel bytes with the
// node's outbound payload.
package main

import (
	"context"
	"errors"
	"os"
)

func main() {
	ctx, cancel := Context()
	defer cancel()

	node, release, err := Setup(ctx)
	if err != nil {
		Log("Failed to initialize node: " + err.Error())
		Exit(1)
	}
	defer release()
	Log("Node ready: " + node.String())

	if err := node.Start(); err != nil {
		Log("Failed to start node: " + err.Error())
		if err := node.Close(); err != nil {
			Log("Failed to close node: " + err.Error())
		}
		release()
		Exit(1)
	}
	defer node.Close()

	if err := node.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		Log("Node stopped: " + err.Error())
	}
	Log("Shutting down, " + node.Stats().String())
}

// Exit flushes the log before leaving.
func Exit(code int) {
	Flush()
	os.Exit(code)
}
