package main

import "github.com/MeKo-Tech/omr/cmd/omr/cmd"

func main() {
	cmd.Execute()
}
