package main

import "github.com/ridoystarlord/depmigrate/cmd"

func main() {
	cmd.Execute()
}
