package main

import "github.com/jfmyers9/tuner/cmd"

func main() {
	cmd.Execute()
}
