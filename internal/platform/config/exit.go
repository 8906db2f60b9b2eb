package config

import (
	"fmt"
	"io"
	"os"
)

var exit = os.Exit

// Exitf writes a formatted error message to stderr and exits with code 1.
func Exitf(format string, args ...any) {
	writeExit(os.Stderr, format, args...)
	exit(1)
}

func writeExit(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, format+"\n", args...)
}
