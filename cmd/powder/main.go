// Command powder scrapes snow forecast tables and serves them from a
// stale-while-revalidate cache.
package main

import (
	"context"
	"fmt"
	"os"
)

func run() int {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "powder:", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(run())
}
