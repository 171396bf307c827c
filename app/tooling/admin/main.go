// This program performs administrative tasks for the simulator service.
package main

import (
	"github.com/cipherledger/cipherledger/app/tooling/admin/commands"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {
	commands.Execute(build)
}
