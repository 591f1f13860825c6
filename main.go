package main

import "github.com/bascanada/forklift-ops/cmd"

func main() {
	cmd.Execute()
}
