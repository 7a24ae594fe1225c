package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/saiset-co/catalog-service/config"
	"github.com/saiset-co/catalog-service/service"
)

func main() {
	app := &cli.App{
		Name:  "catalog-service",
		Usage: "Product catalog and inquiry API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config.yml",
				Usage:   "path to the YAML configuration",
				EnvVars: []string{"CATALOG_CONFIG"},
			},
		},
		Action: start,
		Commands: []*cli.Command{
			{
				Name:   "start",
				Usage:  "Start the HTTP service",
				Action: start,
			},
			{
				Name:   "check-config",
				Usage:  "Load and validate the configuration, then exit",
				Action: checkConfig,
			},
			{
				Name:      "hash-token",
				Usage:     "Print the bcrypt hash of an admin token for admin.token_hash",
				ArgsUsage: "<token>",
				Action:    hashToken,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func start(c *cli.Context) error {
	mainCtx, cancel := context.WithCancel(c.Context)
	defer cancel()

	svc, err := service.NewService(mainCtx, c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	return svc.Start()
}

func checkConfig(c *cli.Context) error {
	cfg, err := config.NewLoader().LoadFromFile(c.Context, c.String("config"))
	if err != nil {
		return err
	}

	fmt.Printf("%s %s (%s): listening on %s:%d, database %s\n",
		cfg.Name, cfg.Version, cfg.Environment,
		cfg.Server.HTTP.Host, cfg.Server.HTTP.Port, cfg.Database.Path)
	return nil
}

func hashToken(c *cli.Context) error {
	token := c.Args().First()
	if token == "" {
		return cli.Exit("token is required", 2)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	fmt.Println(string(hash))
	return nil
}
