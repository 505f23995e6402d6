// Command jp2dump inspects and rewrites the metadata of JP2 files.
package main

import (
	"os"

	"github.com/mrjoshuak/go-jp2/internal/cli/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
