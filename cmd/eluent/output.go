package main

import (
	"encoding/json"
	"fmt"
	"os"
)

// outputJSON pretty-prints v to stdout. Ported from the teacher's
// cmd/bd/output.go outputJSON, dropping its TOON-format alternate path
// (toon-format/toon-go is not part of this module's dependency surface).
func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "error encoding JSON: %v\n", err)
		os.Exit(1)
	}
}
