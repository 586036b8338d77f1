// The main package for the pitch-ingest executable.
package main

import (
	"github.com/JakeFAU/pitch-ingest/cmd"
)

func main() {
	cmd.Execute()
}
