package main

import "github.com/seedreap/postreap/cmd"

func main() {
	cmd.Execute()
}
