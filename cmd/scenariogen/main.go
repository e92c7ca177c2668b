package main

import (
	"os"

	"github.com/ngm9/Utkrusht-task-sub000/internal/cli"
)

func main() {
	os.Exit(cli.Execute(cli.NewScenarioGenCommand()))
}
