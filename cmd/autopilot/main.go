package main

import "github.com/devicelab-dev/autopilot/pkg/cli"

func main() {
	cli.Execute()
}
