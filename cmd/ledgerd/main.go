package main

import (
	"github.com/sokopay/ledgerd/internal/cli"
)

func main() {
	cli.Execute()
}
