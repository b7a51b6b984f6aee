package main

import "github.com/offloadkit/offload/cmd/offload/cmd"

func main() {
	cmd.Execute()
}
