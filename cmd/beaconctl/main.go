// Package main provides the beaconctl CLI.
package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	a := newApp()
	if err := a.execute(context.Background(), newRootCmd(a), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
