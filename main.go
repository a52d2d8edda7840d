// The main package for the business-discovery executable.
package main

import (
	"github.com/JakeFAU/business-discovery/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
