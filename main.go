package main

import "github.com/rsproule/attngate/cmd"

func main() {
	cmd.Execute()
}
