package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/insightloop/client-go/internal/api"
	"github.com/insightloop/client-go/internal/config"
	"github.com/insightloop/client-go/internal/identity"
	"github.com/insightloop/client-go/internal/room"
	"github.com/insightloop/client-go/internal/users"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("could not load .env file")
	}

	configPath := flag.String("config", "", "path to YAML config file")
	roomID := flag.String("room", "", "room id to join")
	create := flag.Bool("create", false, "create a new room and join it")
	username := flag.String("username", "", "log in as this username (replaces the stored identity)")
	flag.Parse()

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := api.NewClient(cfg.ServerURL)

	user, err := loadIdentity(ctx, client, *username)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to resolve identity")
	}

	target := *roomID
	if *create {
		target, err = client.CreateRoom(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create room")
		}
		log.Info().Str("room_id", target).Msg("room created")
	}
	if target == "" {
		log.Fatal().Msg("no room: pass -room <id> or -create")
	}

	snapshot, err := client.GetRoom(ctx, target)
	if err != nil {
		log.Fatal().Err(err).Str("room_id", target).Msg("failed to fetch room")
	}

	socketURL, err := cfg.SocketURL()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to derive socket url")
	}

	session := room.NewSession(room.DefaultSessionConfig(socketURL))
	session.OnStatus(func(status room.SessionStatus, attempt int) {
		log.Info().Stringer("status", status).Int("attempt", attempt).Msg("session status")
	})

	rm := room.New(session, user.UserID, target)
	rm.Store().Bootstrap(snapshot.Name, snapshot.Columns, snapshot.Cards)

	watchRoomActivity(session, users.NewLookup(client))

	log.Info().
		Str("server", cfg.ServerURL).
		Str("room_id", target).
		Str("room_name", snapshot.Name).
		Str("user", user.Username).
		Msg("joining room")

	if err := rm.Join(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to join room")
	}

	<-ctx.Done()

	if rm.Store().Phase().Finished() {
		fmt.Print(rm.Summary().Text())
	}
	rm.Leave()
	log.Info().Msg("left room")
}

// loadIdentity returns the durable identity record, logging in first when
// there is none or when a username override was given.
func loadIdentity(ctx context.Context, client *api.Client, username string) (*identity.User, error) {
	path, err := identity.DefaultPath()
	if err != nil {
		return nil, err
	}
	store := identity.NewStore(path)

	if username == "" {
		if user, err := store.Load(); err != nil {
			log.Warn().Err(err).Msg("stored identity unreadable, logging in again")
		} else if user != nil {
			return user, nil
		}
		return nil, fmt.Errorf("no stored identity: pass -username to log in")
	}

	logged, err := client.Login(ctx, username)
	if err != nil {
		return nil, err
	}
	user := &identity.User{UserID: logged.UserID, Username: logged.Username}
	if err := store.Save(user); err != nil {
		log.Warn().Err(err).Msg("could not persist identity")
	}
	return user, nil
}

// watchRoomActivity streams the room's inbound events to the log. Author
// names are resolved lazily through the lookup cache.
func watchRoomActivity(session *room.Session, lookup *users.Lookup) {
	session.Subscribe(room.EventTypeCardAdded, func(evt *room.Event) {
		payload, err := room.ParseEventPayload(evt)
		if err != nil {
			return
		}
		card := payload.(room.CardAddedPayload).Card
		log.Info().
			Str("column_id", card.ColumnID).
			Str("author", lookup.DisplayName(card.Author)).
			Str("content", card.Content).
			Msg("card added")
	})

	session.Subscribe(room.EventTypePhaseChanged, func(evt *room.Event) {
		payload, err := room.ParseEventPayload(evt)
		if err != nil {
			return
		}
		log.Info().Str("phase", payload.(room.PhaseChangedPayload).PhaseID).Msg("phase changed")
	})

	session.Subscribe(room.EventTypeTimerUpdate, func(evt *room.Event) {
		payload, err := room.ParseEventPayload(evt)
		if err != nil {
			return
		}
		update := payload.(room.TimerUpdatePayload)
		log.Info().
			Bool("running", update.IsRunning).
			Int("remaining_secs", update.RemainingTime).
			Str("event", string(update.EventType)).
			Msg("timer update")
	})

	session.Subscribe(room.EventTypeNoteAdded, func(evt *room.Event) {
		payload, err := room.ParseEventPayload(evt)
		if err != nil {
			return
		}
		log.Info().Str("text", payload.(room.NoteAddedPayload).Note.Text).Msg("action item added")
	})

	session.Subscribe(room.EventTypeRoomNameUpdated, func(evt *room.Event) {
		payload, err := room.ParseEventPayload(evt)
		if err != nil {
			return
		}
		log.Info().Str("name", payload.(room.RoomNameUpdatedPayload).Name).Msg("room renamed")
	})
}
