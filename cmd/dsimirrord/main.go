// Command dsimirrord mirrors the primary DSI panel to any connected
// HDMI/DisplayPort secondary output. Its CLI surface follows
// main.cpp's flag table, wired through cobra/viper the way
// FocusStreamer's cmd/focusstreamer/commands does.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
