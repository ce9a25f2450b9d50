package main

import "login-gate/cmd/server/cmd"

func main() {
	cmd.Execute()
}
