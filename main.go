package main

import "ccstats/cmd"

func main() {
	cmd.Execute()
}
