package main

import (
	"fmt"
	"os"
	"strings"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	command := "serve"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		command, args = args[0], args[1:]
	}

	switch command {
	case "serve":
		return runServe(args)
	case "token":
		return runToken(args)
	case "hash-key":
		return runHashKey(args)
	case "help":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `ticketdesk serves the support ticket console.

Usage:
  ticketdesk [serve] [--env-file FILE] [--policy FILE] [--addr HOST:PORT]
  ticketdesk token --emp-id ID --role ROLE [--name NAME] [--env-file FILE]
  ticketdesk hash-key [--key KEY] [--cost N]

Commands:
  serve      run the HTTP server (default)
  token      open a session in the shared store and print its token
  hash-key   print the bcrypt hash for AUTH_ISSUER_KEY_HASH; reads the key
             from stdin when --key is omitted
`)
}
