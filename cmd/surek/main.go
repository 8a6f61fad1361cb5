package main

import "github.com/OlegWock/surek/cli"

func main() {
	cli.Execute()
}
