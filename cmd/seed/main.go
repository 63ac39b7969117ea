package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"go.uber.org/zap"

	"messaging-service/internal/config"
	"messaging-service/internal/db"
	"messaging-service/internal/repositories"
)

// Dev-only seeder: fills the database with fake users, direct chats
// and conversation history so the service has something to serve.
func main() {
	users := flag.Int("users", 20, "number of users to create")
	chats := flag.Int("chats", 30, "number of direct chats to open")
	messages := flag.Int("messages", 8, "max messages per chat")
	flag.Parse()

	if err := run(*users, *chats, *messages); err != nil {
		fmt.Fprintf(os.Stderr, "seed error: %v\n", err)
		os.Exit(1)
	}
}

func run(userCount, chatCount, maxMessages int) error {
	gofakeit.Seed(time.Now().UnixNano())
	logger, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer logger.Sync()

	cfg := config.Load()
	database, err := db.Connect(cfg.DatabaseDSN, logger)
	if err != nil {
		return err
	}
	defer database.Close()

	ctx := context.Background()

	ids := make([]int, 0, userCount)
	for i := 0; i < userCount; i++ {
		var id int
		err := database.QueryRowxContext(ctx,
			`INSERT INTO users (username, profile_pic) VALUES ($1, $2)
             ON CONFLICT (username) DO UPDATE SET profile_pic = EXCLUDED.profile_pic
             RETURNING user_id`,
			gofakeit.Username(), gofakeit.ImageURL(128, 128)).Scan(&id)
		if err != nil {
			return fmt.Errorf("seed user: %w", err)
		}
		ids = append(ids, id)
	}
	logger.Info("seeded users", zap.Int("count", len(ids)))

	chatRepo := repositories.NewChatRepo(database)
	messageRepo := repositories.NewMessageRepo(database)

	seeded := 0
	for i := 0; i < chatCount; i++ {
		a := ids[gofakeit.Number(0, len(ids)-1)]
		b := ids[gofakeit.Number(0, len(ids)-1)]
		if a == b {
			continue
		}

		chat, err := chatRepo.FindDirectChat(ctx, a, b)
		if err != nil {
			chat, err = chatRepo.CreateDirectChat(ctx, a, b)
			if err != nil {
				return fmt.Errorf("seed chat: %w", err)
			}
		}

		for n := gofakeit.Number(1, maxMessages); n > 0; n-- {
			sender := a
			if gofakeit.Bool() {
				sender = b
			}
			if _, _, err := messageRepo.CreateMessage(ctx, chat.ID, sender, gofakeit.HipsterSentence(6)); err != nil {
				return fmt.Errorf("seed message: %w", err)
			}
		}
		seeded++
	}

	logger.Info("seeded chats", zap.Int("count", seeded))
	return nil
}
