package main

import "github.com/ppiankov/askiguard/internal/cli"

func main() {
	cli.Execute()
}
