package main

import "github.com/Yates-Labs/odyssey/cmd"

func main() {
	cmd.Execute()
}
