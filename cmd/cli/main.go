package main

import "uplinkhub/cmd/cli/command"

func main() {
	command.Execute()
}
