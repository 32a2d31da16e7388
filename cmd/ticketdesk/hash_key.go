package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/spec-kit/ticketdesk/internal/auth"
)

func runHashKey(args []string) error {
	var key string
	var cost int

	flagSet := pflag.NewFlagSet("hash-key", pflag.ContinueOnError)
	flagSet.StringVar(&key, "key", "", "issuer key to hash (default: read from stdin)")
	flagSet.IntVar(&cost, "cost", 12, "bcrypt cost")
	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	if key == "" {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("read key: %w", err)
		}
		key = strings.TrimSpace(line)
	}
	if key == "" {
		return errors.New("empty issuer key")
	}

	hash, err := auth.HashIssuerKey(key, cost)
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}
