package main

import "github.com/ValentinKolb/tcsd/cmd"

func main() {
	cmd.Execute()
}
