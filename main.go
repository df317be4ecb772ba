// Package main is the entry point for the nginline CLI.
package main

import "nginline.dev/pkg/nginline/cmd"

func main() {
	cmd.Execute()
}
