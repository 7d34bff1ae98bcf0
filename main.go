package main

import (
	"encoding/json"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/customeros/replydesk/config"
	"github.com/customeros/replydesk/internal/utils"
	"github.com/customeros/replydesk/server"
)

func main() {
	app := &cli.App{
		Name:  "replydesk",
		Usage: "drafts AI replies for unanswered customer email",
		Commands: []*cli.Command{
			{
				Name:   "server",
				Usage:  "Start the API server and the refresh schedule",
				Action: runServer,
			},
			{
				Name:   "refresh",
				Usage:  "Run a single thread refresh and print the cache status",
				Action: runRefresh,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.InitConfig()
	if err != nil {
		return nil, cli.Exit("Config initialization failed: "+err.Error(), 1)
	}
	return cfg, nil
}

func runServer(c *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("replydesk starting up...")

	srv, err := server.NewServer(c.Context, cfg)
	if err != nil {
		return cli.Exit("Server setup failed: "+err.Error(), 1)
	}
	if err := srv.Run(); err != nil {
		return cli.Exit("Server failed: "+err.Error(), 1)
	}

	log.Println("Shutdown complete")
	return nil
}

func runRefresh(c *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	srv, err := server.NewServer(c.Context, cfg)
	if err != nil {
		return cli.Exit("Server setup failed: "+err.Error(), 1)
	}
	defer srv.Close()

	ctx := utils.WithCustomContext(c.Context, &utils.CustomContext{AppSource: "cli"})
	cache := srv.Services().ThreadCache
	if _, err := cache.Refresh(ctx); err != nil {
		return cli.Exit("Refresh failed: "+err.Error(), 1)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(cache.Status())
}
