// Command ebusctl monitors and talks to an eBUS line through a serial adapter, a raw TCP
// adapter or a WebSocket bridge.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
