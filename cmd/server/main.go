package main

import (
	"log"
	"net/http"
	"os"

	"github.com/star-discord/legion-kanri-bot/internal/config"
	"github.com/star-discord/legion-kanri-bot/internal/serverapp"
)

func main() {
	path := os.Getenv("LEGION_CONFIG")
	if path == "" {
		path = "legion_config.yml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	config.FromEnv(cfg)

	handler, err := serverapp.NewHandler(serverapp.Options{
		Config: cfg,
		Logger: log.Default(),
	})
	if err != nil {
		log.Fatalf("build server: %v", err)
	}

	log.Printf("listening on %s", cfg.Server.Addr)
	log.Fatal(http.ListenAndServe(cfg.Server.Addr, handler))
}
