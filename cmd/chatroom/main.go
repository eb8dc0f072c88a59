package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"chatroom/internal"
	"chatroom/internal/app"
)

func main() {
	// a local .env is optional; the environment always wins
	_ = godotenv.Load()

	cfg := app.Load()

	apiURL := flag.String("api", cfg.APIBaseURL, "backend API base URL")
	realtimeURL := flag.String("realtime", cfg.RealtimeURL, "realtime websocket URL (ws:// or wss://)")
	topic := flag.String("topic", cfg.Topic, "realtime channel topic")
	prefsPath := flag.String("prefs", cfg.PrefsPath, "path to the local preferences database")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(internal.VersionString())
		return
	}

	cfg.APIBaseURL = *apiURL
	cfg.RealtimeURL = *realtimeURL
	cfg.Topic = *topic
	cfg.PrefsPath = *prefsPath

	if err := app.RunClient(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
