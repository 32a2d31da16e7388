package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/spec-kit/ticketdesk/internal/config"
	"github.com/spec-kit/ticketdesk/internal/domain"
	"github.com/spec-kit/ticketdesk/internal/persistence"
	"github.com/spec-kit/ticketdesk/internal/repository"
	"github.com/spec-kit/ticketdesk/internal/service"
)

func runToken(args []string) error {
	var envFiles []string
	var empID, role, name string

	flagSet := pflag.NewFlagSet("token", pflag.ContinueOnError)
	flagSet.StringSliceVar(&envFiles, "env-file", nil, "env file(s) to load before reading the environment")
	flagSet.StringVar(&empID, "emp-id", "", "employee id of the session user")
	flagSet.StringVar(&role, "role", "", "role of the session user (Admin, ERPADMIN, ...)")
	flagSet.StringVar(&name, "name", "", "display name")
	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	cfg, err := config.Load(envFiles...)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Redis.Addr == "" {
		return errors.New("token needs REDIS_ADDR: sessions kept in memory are invisible to the server")
	}

	ctx := context.Background()
	redis := persistence.NewRedis(ctx, cfg.Redis, zap.NewNop())
	defer redis.Close()
	if err := redis.Ping(ctx); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	sessions := service.NewSessionService(cfg.Auth, repository.NewRedisSessionStore(redis.Client))
	session, token, err := sessions.Open(ctx, domain.SessionUser{EmpID: empID, Role: domain.Role(role), Name: name})
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "session %s for %s (%s) expires %s\n",
		session.ID, session.User.EmpID, session.User.Role, session.ExpiresAt.Format("2006-01-02 15:04:05"))
	fmt.Println(token)
	return nil
}
