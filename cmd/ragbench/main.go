package main

import "ragbench/internal/cli"

func main() {
	cli.Execute()
}
