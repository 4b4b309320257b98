package main

import (
	"github.com/ValentinKolb/dNet/cmd"
)

func main() {
	cmd.Execute()
}
