package main

import "p2pwatcher/internal/cli"

func main() {
	cli.Execute()
}
