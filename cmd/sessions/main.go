package main

import (
	"fmt"
	"os"

	"github.com/iammorganparry/clive/apps/sessions/internal/render"
)

func main() {
	cmd, a := newRootCmd()
	err := cmd.Execute()
	if cerr := a.close(); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, render.Error(err))
		os.Exit(1)
	}
}
