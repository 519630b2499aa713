package main

import "github.com/example/swellwatch/cmd"

func main() {
	cmd.Execute()
}
