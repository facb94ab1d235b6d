package main

import "github.com/stephnangue/notary/cmd"

func main() {
	cmd.Execute()
}
