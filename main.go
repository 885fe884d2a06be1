// File: main.go
package main

import "github.com/voidmaw/wayfarer/cmd"

// main is the entry point for the wayfarer CLI.
func main() {
	cmd.Execute()
}
