package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/gophauth/internal/authctl"
	"github.com/dmitrijs2005/gophauth/internal/authserver/config"
	"github.com/dmitrijs2005/gophauth/internal/logging"
)

func main() {
	ctx := context.Background()
	cfg := config.LoadConfig()
	logger := logging.NewJSONLogger(os.Stderr, cfg.LogLevel)

	tool, closeFn, err := authctl.Open(ctx, cfg, os.Stdin, os.Stdout, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	err = tool.Run(ctx, commandArgs(os.Args[1:]))
	if cerr := closeFn(); cerr != nil {
		fmt.Fprintln(os.Stderr, cerr)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// commandArgs drops leading config flags so the command name comes first.
func commandArgs(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] != '-' && (i == 0 || !takesValue(args[i-1])) {
			return args[i:]
		}
	}
	return nil
}

func takesValue(flag string) bool {
	switch flag {
	case "-c", "-config", "-a", "-s", "-t", "-r", "-k", "-d", "-u", "-l":
		return true
	}
	return false
}
