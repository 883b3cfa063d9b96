// go-avatar - real-time avatar animation client
// Connects to an animation server over WebSocket and drives a Live2D-style
// parameter model from its events.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/poblanc/go-avatar/internal/config"
	avatarlog "github.com/poblanc/go-avatar/internal/log"
	"github.com/poblanc/go-avatar/pkg/avatar"
)

func main() {
	// .env is optional; environment variables win either way.
	godotenv.Load()

	serverURL := flag.String("server", "", "Animation server WebSocket URL (overrides AVATAR_SERVER_HOST/PORT)")
	webPort := flag.String("web-port", "", "Status server port (overrides AVATAR_WEB_PORT)")
	noWeb := flag.Bool("no-web", false, "Disable the local status server")
	flag.Parse()

	avatarlog.Init(config.LogLevel())
	logger := avatarlog.L()

	url := config.ServerURL()
	if *serverURL != "" {
		url = *serverURL
	}
	port := config.WebPort()
	if *webPort != "" {
		port = *webPort
	}
	if *noWeb {
		port = ""
	}

	app, err := avatar.New(avatar.Config{
		ServerURL: url,
		WebPort:   port,
		Logger:    logger,
	})
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	logger.Info("starting avatar", "server", url, "web_port", port)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.Run(ctx); err != nil {
		log.Fatalf("runtime error: %v", err)
	}
}
