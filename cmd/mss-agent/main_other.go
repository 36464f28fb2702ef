//go:build !darwin

package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Fprintln(os.Stderr, "mss-agent is a macOS shared library loaded into the Dock; on X11 run 'mss agent'")
	os.Exit(1)
}
