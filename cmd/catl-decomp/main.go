package main

import "github.com/catl-tools/catld/internal/cli"

func main() {
	cli.Execute()
}
