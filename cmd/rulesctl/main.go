// Command rulesctl publishes and rolls back rule documents kept in Postgres.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"loanflow/internal/platform/config"
	"loanflow/internal/platform/logger"
	"loanflow/internal/platform/postgres"
	"loanflow/internal/rules/store"
)

func main() {
	var name, publishedBy string
	flag.StringVar(&name, "name", "onboarding", "Rule document name")
	flag.StringVar(&publishedBy, "by", os.Getenv("USER"), "Publisher recorded with the version")
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "usage: rulesctl [flags] publish <file> | activate <version> | versions")
		flag.PrintDefaults()
	}
	flag.Parse()

	log := logger.New(slog.LevelInfo)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg := config.FromEnv()
	db, err := postgres.OpenDB(ctx, cfg.Postgres)
	if err != nil {
		log.Error("failed to open rule store", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	src := store.NewPostgresSource(db, name)

	switch flag.Arg(0) {
	case "publish":
		content, err := os.ReadFile(flag.Arg(1))
		if err != nil {
			log.Error("failed to read rule document", "error", err)
			os.Exit(1)
		}
		doc, err := src.Publish(ctx, content, publishedBy)
		if err != nil {
			log.Error("publish rejected", "error", err)
			os.Exit(1)
		}
		log.Info("rule document published", "name", doc.Name, "version", doc.Version, "config_version", doc.ConfigVersion)
	case "activate":
		version, err := strconv.Atoi(flag.Arg(1))
		if err != nil {
			flag.Usage()
			os.Exit(2)
		}
		if err := src.Activate(ctx, version); err != nil {
			log.Error("activate failed", "error", err)
			os.Exit(1)
		}
		log.Info("rule document activated", "name", name, "version", version)
	case "versions":
		docs, err := src.Versions(ctx)
		if err != nil {
			log.Error("failed to list versions", "error", err)
			os.Exit(1)
		}
		for _, d := range docs {
			fmt.Printf("%d\t%s\tactive=%t\t%s\t%s\n", d.Version, d.ConfigVersion, d.Active, d.PublishedBy, d.CreatedAt.Format(time.RFC3339))
		}
	default:
		flag.Usage()
		os.Exit(2)
	}
}
