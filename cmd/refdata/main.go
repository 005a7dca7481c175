// cmd/refdata/main.go
package main

import (
	"os"

	"github.com/arc-language/refdata/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
