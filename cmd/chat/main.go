// Command chat runs a single crisis-support session in the terminal.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/zhouzirui/beacon/internal/app"
	"github.com/zhouzirui/beacon/internal/config"
	"github.com/zhouzirui/beacon/internal/tui"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	// The alternate screen owns stdout; logs go to a file or nowhere.
	if path := os.Getenv("BEACON_LOG_FILE"); path != "" {
		f, err := tea.LogToFile(path, "beacon")
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
	} else {
		log.SetOutput(io.Discard)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	personas, err := app.LoadPersonas(cfg.Personas)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load personas: %v\n", err)
		os.Exit(1)
	}

	chatService, err := app.NewChatService(ctx, cfg, personas, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize chat service: %v\n", err)
		os.Exit(1)
	}

	session, err := chatService.CreateSession(ctx, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open session: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = chatService.CloseSession(context.Background(), session.ID()) }()

	p := tea.NewProgram(
		tui.New(ctx, session, personas.List()),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "Error running chat: %v\n", err)
		os.Exit(1)
	}
}
