// Command lightdash compiles metric queries against CUE-defined explores.
package main

import (
	"os"

	"github.com/ataft/lightdash/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
