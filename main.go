package main

import (
	"github.com/printware/loghound/cmd"
)

func main() {
	cmd.Execute()
}
