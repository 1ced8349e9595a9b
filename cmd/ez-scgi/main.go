package main

import "github.com/raphaelreyna/ez-scgi/cmd/ez-scgi/cmd"

func main() {
	cmd.Execute()
}
