// Package main runs the one-time ledger bootstrap.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	bootstrapcmd "github.com/ydacademy/courseledger/internal/cmd/bootstrap"
)

func main() {
	cfg, err := bootstrapcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[BOOTSTRAP] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := bootstrapcmd.Run(ctx, cfg); err != nil {
		log.Fatalf("bootstrap ledger: %v", err)
	}
}
