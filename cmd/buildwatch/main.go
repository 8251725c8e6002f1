// buildwatch bundles a JavaScript/TypeScript project with esbuild and
// rebuilds it whenever a source file changes.
package main

import (
	"os"

	"github.com/hupe1980/buildwatch/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
