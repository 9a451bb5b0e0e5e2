// Command habitgrid tracks daily habits on a grid of recent days.
package main

import "github.com/mesh-intelligence/habitgrid/internal/cli"

func main() {
	cli.Execute()
}
