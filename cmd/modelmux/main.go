package main

import "github.com/modelmux/modelmux/internal/cmd"

func main() {
	cmd.Execute()
}
