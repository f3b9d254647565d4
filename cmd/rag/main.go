package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"ragapi/internal/client"
	"ragapi/internal/tui"
)

func main() {
	_ = godotenv.Load()

	defaultServer := os.Getenv("RAG_SERVER_URL")
	if defaultServer == "" {
		defaultServer = "http://localhost:8000"
	}

	var (
		server string
		n      int
		all    bool
	)
	flag.StringVar(&server, "server", defaultServer, "Base URL of the RAG API server")
	flag.IntVar(&n, "n", 3, "Number of results to retrieve (1-10)")
	flag.BoolVar(&all, "all", false, "Use all retrieved results as context instead of only the best one")
	flag.Parse()

	api := client.New(server)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err := api.Health(ctx)
	cancel()
	if err != nil {
		log.Fatalf("server %s is not reachable: %v", server, err)
	}

	m := tui.New(api, server, client.QueryOptions{NResults: n, UseBestOnly: !all})
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		log.Fatal(err)
	}
}
