package main

import "github.com/KelvinMNH/FaceEventos/cmd"

func main() {
	cmd.Execute()
}
