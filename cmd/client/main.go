package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/omochice/roomcast/internal/chat"
	"github.com/omochice/roomcast/internal/client"
	ctcp "github.com/omochice/roomcast/internal/client/tcp"
	cws "github.com/omochice/roomcast/internal/client/ws"
	"github.com/omochice/roomcast/internal/logging"
	"github.com/omochice/roomcast/pkg/protocol"
)

const requestTimeout = 5 * time.Second

const help = `Commands:
  /join <room>          join a room and make it current
  /leave [room]         leave a room (default: current)
  /dm <user> <message>  send a direct message
  /typing [on|off]      announce typing in the current room
  /read <user>          mark messages from user as read
  /history [limit]      show recent messages of the current room
  /quit                 sign out and exit
Anything else is sent to the current room.`

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	serverAddr := flag.String("server", "localhost:8080", "TCP address, or a ws:// URL for WebSocket")
	token := flag.String("token", os.Getenv("ROOMCAST_TOKEN"), "identity token (default $ROOMCAST_TOKEN)")
	room := flag.String("room", "lobby", "room to join after signing in")
	useJSON := flag.Bool("json", false, "use JSON frames instead of binary")
	verbose := flag.Bool("v", false, "log protocol details")
	flag.Parse()

	if *token == "" {
		return fmt.Errorf("token is required, use -token or ROOMCAST_TOKEN")
	}

	level := "warn"
	if *verbose {
		level = "debug"
	}
	log, err := logging.New(logging.Options{Level: level, Format: logging.FormatConsole})
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	opts := []client.Option{client.WithLogger(log)}
	if *useJSON {
		opts = append(opts, client.WithFormat(protocol.FormatJSON))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var c *client.Client
	if strings.HasPrefix(*serverAddr, "ws://") || strings.HasPrefix(*serverAddr, "wss://") {
		c, err = cws.Dial(ctx, *serverAddr, opts...)
	} else {
		c, err = ctcp.Dial(ctx, *serverAddr, opts...)
	}
	if err != nil {
		return err
	}
	defer c.Close()

	authCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	me, err := c.Authenticate(authCtx, *token)
	cancel()
	if err != nil {
		return fmt.Errorf("sign in failed: %w", err)
	}
	fmt.Printf("Signed in as %s (%s)\n", me.DisplayName, me.UserID)

	s := &session{client: c, log: log, userID: me.UserID, room: *room}
	if err := s.client.JoinRoom(ctx, s.room); err != nil {
		return err
	}

	go s.print()

	fmt.Println(help)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		quit, err := s.command(ctx, line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "! %v\n", err)
		}
		if quit {
			break
		}
	}
	return scanner.Err()
}

type session struct {
	client *client.Client
	log    *zap.Logger
	userID string
	room   string
}

func (s *session) command(ctx context.Context, line string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	if !strings.HasPrefix(line, "/") {
		return false, s.client.SendMessage(ctx, s.room, line, "")
	}
	fields := strings.Fields(line)
	args := fields[1:]
	switch fields[0] {
	case "/join":
		if len(args) != 1 {
			return false, fmt.Errorf("usage: /join <room>")
		}
		s.room = args[0]
		return false, s.client.JoinRoom(ctx, s.room)
	case "/leave":
		room := s.room
		if len(args) > 0 {
			room = args[0]
		}
		return false, s.client.LeaveRoom(ctx, room)
	case "/dm":
		if len(args) < 2 {
			return false, fmt.Errorf("usage: /dm <user> <message>")
		}
		body := strings.TrimSpace(strings.TrimPrefix(line, fields[0]+" "+args[0]))
		return false, s.client.SendMessage(ctx, chat.DirectRoomID(s.userID, args[0]), body, args[0])
	case "/typing":
		return false, s.client.Typing(ctx, s.room, len(args) == 0 || args[0] != "off")
	case "/read":
		if len(args) != 1 {
			return false, fmt.Errorf("usage: /read <user>")
		}
		return false, s.client.MarkRead(ctx, args[0])
	case "/history":
		limit := 0
		if len(args) > 0 {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return false, fmt.Errorf("invalid limit %q", args[0])
			}
			limit = n
		}
		return false, s.client.GetMessages(ctx, s.room, limit, 0)
	case "/quit", "/exit":
		return true, s.client.SignOut(ctx)
	case "/help":
		fmt.Println(help)
		return false, nil
	}
	return false, fmt.Errorf("unknown command %s", fields[0])
}

// print renders server events until the connection ends.
func (s *session) print() {
	for env := range s.client.Events() {
		if err := s.render(env); err != nil {
			s.log.Warn("failed to render event", zap.String("event", env.Event), zap.Error(err))
		}
	}
	if err := s.client.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "connection closed: %v\n", err)
	} else {
		fmt.Println("Disconnected from server")
	}
}

func (s *session) render(env protocol.Envelope) error {
	switch env.Event {
	case protocol.EventNewMessage:
		var m protocol.MessagePayload
		if err := env.Bind(&m); err != nil {
			return err
		}
		fmt.Printf("[%s] %s: %s\n", m.RoomID, m.SenderDisplayName, m.Body)
	case protocol.EventMessages:
		var p protocol.MessagesPayload
		if err := env.Bind(&p); err != nil {
			return err
		}
		for _, m := range p.Messages {
			fmt.Printf("  %s %s: %s\n", m.CreatedAt.Local().Format(time.Kitchen), m.SenderDisplayName, m.Body)
		}
		if p.HasMore {
			fmt.Println("  ...")
		}
	case protocol.EventUserTyping:
		var p protocol.UserTypingPayload
		if err := env.Bind(&p); err != nil {
			return err
		}
		if p.IsTyping {
			fmt.Printf("*** %s is typing in %s ***\n", p.DisplayName, p.RoomID)
		}
	case protocol.EventUnreadCounts:
		var p protocol.UnreadCountsPayload
		if err := env.Bind(&p); err != nil {
			return err
		}
		for sender, n := range p.Counts {
			fmt.Printf("*** %d unread from %s ***\n", n, sender)
		}
	case protocol.EventUnreadCountUpdated:
		var p protocol.UnreadCountPayload
		if err := env.Bind(&p); err != nil {
			return err
		}
		fmt.Printf("*** %d unread from %s ***\n", p.UnreadCount, p.SenderID)
	case protocol.EventRoomJoined, protocol.EventRoomLeft:
		var p protocol.RoomPayload
		if err := env.Bind(&p); err != nil {
			return err
		}
		verb := "joined"
		if env.Event == protocol.EventRoomLeft {
			verb = "left"
		}
		fmt.Printf("*** %s %s ***\n", verb, p.RoomID)
	case protocol.EventError:
		var p protocol.ErrorPayload
		if err := env.Bind(&p); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "! %s\n", (&client.ServerError{ErrorPayload: p}).Error())
	default:
		s.log.Debug("unhandled event", zap.String("event", env.Event))
	}
	return nil
}
