// The main package for the docrover executable.
package main

import (
	"github.com/docrover/docrover/cmd"
)

func main() {
	cmd.Execute()
}
