// Package main provides the entry point for the pkms-search CLI.
package main

import (
	"os"

	"github.com/ashishacharya123/PKMS-sub000/cmd/pkms-search/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
