package main

import "stridestats/internal/cmd"

func main() {
	cmd.Execute()
}
