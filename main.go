package main

import "github.com/KaramelBytes/flowloom-cli/cmd"

func main() {
	cmd.Execute()
}
