package main

import (
	"github.com/Laisky/docstock/cmd"
)

func main() {
	cmd.Execute()
}
