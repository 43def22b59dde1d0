// Command controller is a terminal controller: it joins a room, prints every
// update and forwards each typed line as a raw input token.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/DoyleJ11/party-board-backend/internal/config"
	"github.com/DoyleJ11/party-board-backend/internal/controller"
	"github.com/DoyleJ11/party-board-backend/pkg/types"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	url := flag.String("url", cfg.ControllerURL, "host base URL")
	room := flag.String("room", "", "5-digit room code")
	name := flag.String("name", "Player", "display name")
	flag.Parse()

	log, err := cfg.Logger()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(*url, *room, *name, log); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(url, room, name string, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	in := bufio.NewScanner(os.Stdin)
	for room == "" {
		fmt.Print("room code: ")
		if !in.Scan() {
			return nil
		}
		room = strings.TrimSpace(in.Text())
	}

	c, slot, err := connect(ctx, url, room, name, log)
	if err != nil {
		return err
	}
	defer c.Close()
	fmt.Printf("joined room %s as player %d. type r to roll, anything else is sent as-is.\n", room, slot)

	go func() {
		for {
			select {
			case u := <-c.Updates():
				render(u, slot)
			case <-c.Done():
				fmt.Println("disconnected from host")
				stop()
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		for in.Scan() {
			lines <- strings.TrimSpace(in.Text())
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if line == "" {
				continue
			}
			action := line
			if strings.EqualFold(line, "r") || strings.EqualFold(line, "roll") {
				action = types.ActionRoll
			}
			if err := c.Send(ctx, action); err != nil {
				log.Warn("send failed", zap.Error(err))
			}
		}
	}
}

// connect surfaces join failures as errors the user can act on.
func connect(ctx context.Context, url, room, name string, log *zap.Logger) (*controller.Client, int, error) {
	c, err := controller.Dial(ctx, url, room, controller.WithLogger(log))
	if errors.Is(err, controller.ErrRoomNotFound) {
		return nil, -1, fmt.Errorf("no room %s, check the code on the display and try again", room)
	}
	if err != nil {
		return nil, -1, fmt.Errorf("could not reach host: %w", err)
	}

	slot, err := c.Join(ctx, name)
	if err != nil {
		c.Close()
		return nil, -1, err
	}
	return c, slot, nil
}

func render(u types.GameUpdate, slot int) {
	fmt.Printf("\n[v%d] %s", u.Version, u.Phase)
	if u.TurnPhase != "" && u.Phase == "BOARD" {
		fmt.Printf(" / %s", u.TurnPhase)
	}
	fmt.Printf("  round %d/%d\n", u.Round, u.RoundLimit)
	if u.Announcement != "" {
		fmt.Printf("  %s\n", u.Announcement)
	}
	for i, p := range u.Players {
		marker := " "
		if i == u.CurrentPlayerIndex && u.Phase == "BOARD" {
			marker = ">"
		}
		you := ""
		if p.ID == slot {
			you = " (you)"
		}
		fmt.Printf(" %s %-12s coins %3d  stars %d  space %2d%s\n", marker, p.Name, p.Coins, p.Stars, p.Position, you)
	}
	if m := u.CurrentMinigame; m != nil {
		fmt.Printf("  minigame: %s. %s\n", m.Name, m.Instructions)
	}
	if u.Phase == "BOARD" && u.CurrentPlayerIndex == slot && u.TurnPhase == "TURN_START" {
		fmt.Println("  your turn: r to roll")
	}
}
