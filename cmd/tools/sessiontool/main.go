package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/celeste-app/celeste/backend/internal/config"
	"github.com/celeste-app/celeste/backend/internal/model/persona"
	"github.com/celeste-app/celeste/backend/internal/service/chat"
	"github.com/celeste-app/celeste/backend/internal/service/export"
	"github.com/celeste-app/celeste/backend/internal/service/mail"
	"github.com/celeste-app/celeste/backend/internal/storage"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] no .env file, using system environment: %v", err)
	}

	email := flag.String("email", "", "user email whose most recent session is printed")
	finalize := flag.Bool("finalize", false, "mail the transcript to -email and delete the session")
	timeout := flag.Duration("timeout", 30*time.Second, "overall timeout")
	flag.Parse()

	if *email == "" {
		flag.Usage()
		log.Fatal("-email is required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	gateway, err := storage.Open(cfg.Store)
	if err != nil {
		log.Fatalf("failed to configure session store: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	defer gateway.Close(context.WithoutCancel(ctx))

	active, _ := persona.Resolve(persona.NewMemoryStore(persona.Seed()), cfg.Chat.PersonaID)
	repo := chat.NewRepository(gateway)

	session, err := repo.FindMostRecentByUser(ctx, *email)
	if err != nil {
		log.Fatalf("lookup failed: %v", err)
	}
	if session == nil {
		fmt.Fprintf(os.Stderr, "no session for %s\n", *email)
		return
	}

	fmt.Printf("session %s (%d turns, updated %s)\n\n", session.SessionID, len(session.Messages), session.UpdatedAt.In(cfg.Chat.Location).Format(time.DateTime))
	fmt.Println(export.RenderTranscript(session.Messages, active.Name))

	if !*finalize {
		return
	}

	mailer, err := mail.NewMailer(cfg.Mail, active.Name)
	if err != nil {
		log.Fatalf("mail delivery unavailable: %v", err)
	}
	if err := export.NewService(repo, mailer, active.Name).Finalize(ctx, session.SessionID, *email); err != nil {
		log.Fatalf("finalize failed: %v", err)
	}
	fmt.Printf("\nsession %s mailed to %s and deleted\n", session.SessionID, *email)
}
