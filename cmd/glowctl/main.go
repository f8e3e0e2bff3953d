package main

import (
	"fmt"
	"os"

	"glowhost/internal/glowctl"
)

func main() {
	if err := glowctl.BuildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
