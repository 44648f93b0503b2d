package main

import "github.com/jpl-au/segfile/cmd/segfile/cmd"

func main() {
	cmd.Execute()
}
