package main

import "github.com/DrSkyle/bridgestore/cmd/bridgestore/commands"

func main() {
	commands.Execute()
}
