package main

import "github.com/nextlevelbuilder/agentloop/cmd"

func main() {
	cmd.Execute()
}
