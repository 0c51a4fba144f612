// cmd/roomcli/main.go is a headless room client: it connects to one room,
// prints lobby events as they arrive, and sends stdin lines as chat.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/chainwars-gg/roomsync/internal/config"
	"github.com/chainwars-gg/roomsync/internal/engine"
	"github.com/chainwars-gg/roomsync/internal/journal"
	"github.com/chainwars-gg/roomsync/internal/store"
)

func main() {
	cfg := config.Load()

	logger := logrus.New()
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(lvl)
	}

	if cfg.RoomPath == "" {
		logger.Fatal("ROOMSYNC_ROOM_PATH is required")
	}

	// The frame journal is optional; only wire it when Redis is reachable.
	var j *journal.Journal
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Warnf("journal disabled, redis unreachable at %s: %v", cfg.RedisAddr, err)
		} else {
			j = journal.New(rdb, cfg.QueueName, cfg.RoomPath, logger)
		}
	}

	eng := engine.New(engine.Config{
		ServerURL: cfg.ServerURL,
		RoomPath:  cfg.RoomPath,
		Token:     cfg.Token,
		Logger:    logger,
		Journal:   j,
		OnProtocolError: func(code, message string) {
			fmt.Printf("!! server error %s: %s\n", code, message)
		},
	})
	defer eng.Close()

	st := eng.Store()
	st.Subscribe(store.TopicChat, func() {
		history := st.ChatHistory()
		if len(history) == 0 {
			return
		}
		last := history[len(history)-1]
		fmt.Printf("[%s] %s: %s\n", last.CreatedAt.Format("15:04:05"), last.UserID, last.Content)
	})
	st.Subscribe(store.TopicPlayers, func() {
		fmt.Printf("-- players: %d\n", len(st.Players()))
	})
	st.Subscribe(store.TopicLobby, func() {
		if lob, ok := st.Lobby(); ok {
			fmt.Printf("-- lobby %s status=%s pool=%s\n", lob.Name, lob.Status, lob.CurrentAmount)
		}
	})
	st.Subscribe(store.TopicConnection, func() {
		ci := st.Connection()
		fmt.Printf("-- connection: %s (latency %dms)\n", ci.State, ci.LatencyMs)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	err := eng.Connect(ctx)
	cancel()
	if err != nil {
		logger.Fatalf("connect to room %s: %v", cfg.RoomPath, err)
	}
	eng.Join()

	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			eng.SendMessage(line, "")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	eng.Leave()
	logger.Info("roomcli shutting down")
}
