package main

import "github.com/pfrederiksen/mothership-events/internal/cli"

func main() {
	cli.Execute()
}
