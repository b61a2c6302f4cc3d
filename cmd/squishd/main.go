package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	err := newRootCommand().Execute()
	if err == nil || errors.Is(err, context.Canceled) {
		// Signal-driven shutdown is a clean exit for the daemon.
		return
	}
	fmt.Fprintln(os.Stderr, "squishd:", err)
	os.Exit(1)
}
