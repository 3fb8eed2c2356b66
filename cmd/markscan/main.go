// Command markscan builds and grades optical-mark answer sheets.
package main

import (
	"os"

	"markscan/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
