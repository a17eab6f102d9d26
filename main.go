package main

import "github.com/kozaktomas/fingerprint-matcher/cmd"

func main() {
	cmd.Execute()
}
