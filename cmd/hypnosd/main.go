package main

import (
	"fmt"
	"os"
)

func main() {
	root := buildRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "hypnosd:", err)
		os.Exit(1)
	}
}
