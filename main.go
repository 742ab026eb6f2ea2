package main

import (
	"github.com/AElnamaki/simulate/internal/cli"
)

func main() {
	cli.Run()
}
