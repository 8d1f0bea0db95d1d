package main

import "github.com/gen1nya/WinMediaSessionProvider/cmd"

func main() {
	cmd.Execute()
}
