package main

import "github.com/devaulthq/devault/cmd/devault/cmd"

func main() {
	cmd.Execute()
}
