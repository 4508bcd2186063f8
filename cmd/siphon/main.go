package main

import "github.com/hbomb79/Siphon/cmd/siphon/cmd"

func main() {
	cmd.Execute()
}
