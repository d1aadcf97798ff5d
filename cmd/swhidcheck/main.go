package main

import (
	"fmt"
	"os"

	"github.com/swhidcheck/swhidcheck/internal/report"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(report.ExitEngineError)
	}
}
