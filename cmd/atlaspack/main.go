// Command atlaspack packs sprite folders into texture atlases
package main

import (
	"os"

	"github.com/poltergeist/atlaspack/pkg/cli"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := cli.Execute(version); err != nil {
		os.Exit(1)
	}
}
