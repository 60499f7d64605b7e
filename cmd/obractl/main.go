// Command obractl runs operator tasks against the ObraFin database.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(loadApp).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
