// The main package for the jobhunter executable.
package main

import (
	"os"

	"github.com/JakeFAU/jobhunter/cmd"
)

// main defers all execution to the Cobra CLI and exits with its code.
func main() {
	os.Exit(cmd.Execute())
}
