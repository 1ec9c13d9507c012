package main

import "github.com/tablescope/tablescope/cmd"

func main() {
	cmd.Execute()
}
