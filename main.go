package main

import "nathanbeddoewebdev/cloudharvest/cmd"

func main() {
	cmd.Execute()
}
