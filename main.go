package main

import "github.com/andresmejia3/eigensentinel/cmd"

func main() {
	cmd.Execute()
}
