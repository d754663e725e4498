package main

import "github.com/mkline/civicsync/cmd/civicsync/cmd"

func main() {
	cmd.Execute()
}
