package main

import (
	"fmt"
	"os"

	"github.com/llehouerou/bpmdata/cmd"
	"github.com/llehouerou/bpmdata/internal/app"
)

func main() {
	actx := &app.Context{}

	err := cmd.RootCommand(actx).Execute()
	if err != nil {
		actx.Logger().Error("command failed", "error", err)
	}
	if cerr := actx.Close(); cerr != nil {
		fmt.Fprintf(os.Stderr, "close log: %v\n", cerr)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
