package main

import "github.com/tasktrac/apiserver/cmd"

func main() {
	cmd.Execute()
}
