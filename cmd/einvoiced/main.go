package main

import "einvoice-bridge/internal/adapters/cli"

func main() {
	cli.Execute()
}
