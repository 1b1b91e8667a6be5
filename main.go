package main

import "github.com/williamokano/dbb/cmd"

func main() {
	cmd.Execute()
}
