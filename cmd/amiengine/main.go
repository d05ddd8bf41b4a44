package main

import "github.com/ppiankov/amiengine/internal/cli"

func main() {
	cli.Execute()
}
