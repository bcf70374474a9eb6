package main

import "github.com/ctvkit/ctvaudit/cmd"

func main() {
	cmd.Execute()
}
