// Command callmark highlights dictionary phrases in call transcripts.
package main

import (
	"os"

	"github.com/MrWong99/callmark/cmd/callmark/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
