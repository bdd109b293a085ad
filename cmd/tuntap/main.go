package main

import (
	"github.com/caldog20/tuntap/node/cmd"
)

// Calls root cobra command in node/cmd/root.go
func main() {
	cmd.Execute()
}
