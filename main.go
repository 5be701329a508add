package main

import "github.com/eventcat/eventcat/cmd"

func main() {
	cmd.Execute()
}
