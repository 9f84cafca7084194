package main

import "hostwatch/internal/cli"

func main() {
	cli.Execute()
}
