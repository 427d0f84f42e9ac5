package main

import "github.com/denzyldick/mediasafe/internal/cmd"

func main() {
	cmd.Execute()
}
