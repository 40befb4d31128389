// Package main provides the profiler CLI: it serves the profiler pages over
// a profile storage and lists, shows or purges stored profiles.
//
//	profiler list --method POST --limit 20
//	profiler show a1b2c3 --panel request
//	profiler serve --dsn sqlite:/var/cache/profiler.db
package main

import (
	"fmt"
	"os"
)

func main() {
	err := newRootCmd().Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
