// The main package for the stringfinder executable.
package main

import (
	"github.com/JakeFAU/stringfinder/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
