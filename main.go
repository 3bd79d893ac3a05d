// Entrypoint for the dtwin CLI; delegates to the Cobra root command in cmd/root.go.

package main

import (
	"github.com/dtwin/dtwin/cmd"
)

func main() {
	cmd.Execute()
}
