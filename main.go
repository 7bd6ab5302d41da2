package main

import "scanstream/cmd"

func main() {
	cmd.Execute()
}
