// eduroom is a headless classroom client: it logs into the signaling
// server, joins a room and prints every published session snapshot. Useful
// for exercising two roles against a local edud instance.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/CosmosZhu/eEducation/internal/adapters/media"
	signalclient "github.com/CosmosZhu/eEducation/internal/adapters/signal"
	"github.com/CosmosZhu/eEducation/internal/adapters/storage"
	"github.com/CosmosZhu/eEducation/internal/app"
	"github.com/CosmosZhu/eEducation/internal/config"
	"github.com/CosmosZhu/eEducation/internal/core"
	"github.com/CosmosZhu/eEducation/internal/domain"
)

type logNotifier struct{}

func (logNotifier) Notify(n core.Notice) {
	log.Info().Str("kind", n.Kind).Msg(n.Text)
}

func main() {
	var (
		uid      = flag.String("uid", "", "user id (numeric string)")
		account  = flag.String("account", "", "display name")
		role     = flag.String("role", "student", "teacher or student")
		room     = flag.String("room", "demo", "channel id")
		roomType = flag.Int("room-type", 1, "0 one-to-one, 1 small class, 2 big class")
	)
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if *uid == "" || *account == "" {
		log.Fatal().Msg("both -uid and -account are required")
	}
	parsedRole, err := domain.ParseRole(*role)
	if err != nil {
		log.Fatal().Err(err).Str("role", *role).Msg("bad role")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
	}

	store := core.NewStore()
	files, err := storage.NewFileStorage(cfg.StatePath)
	if err != nil {
		log.Fatal().Err(err).Msg("open state storage")
	}
	client, err := signalclient.Dial(ctx, cfg.ServerURL)
	if err != nil {
		log.Fatal().Err(err).Msg("connect signaling server")
	}
	defer client.Close()

	ctl := app.NewController(store, client, media.NewClient(), files, logNotifier{})
	defer ctl.Close()
	ctl.SetForcedExitHandler(func(reason string) {
		log.Warn().Str("reason", reason).Msg("forced exit")
		cancel()
	})

	unsubscribe := store.Subscribe(func(s core.Session) {
		log.Info().
			Int("members", len(s.Members)).
			Int("messages", len(s.Messages)).
			Int("count", s.Connection.MemberCount).
			Str("covideo", string(s.CoVideo.UID)).
			Msg("session updated")
	})
	defer unsubscribe()

	err = ctl.LoginAndJoin(ctx, app.LoginParams{
		AppID:    cfg.AppID,
		UID:      domain.UID(*uid),
		Account:  *account,
		Role:     parsedRole,
		Channel:  domain.ChannelID(*room),
		RoomName: domain.RoomName(*room),
		RoomType: domain.RoomType(*roomType),
	}, false)
	if err != nil {
		log.Fatal().Err(err).Msg("login and join")
	}
	log.Info().Str("room", *room).Str("role", string(parsedRole)).Msg("joined")

	ctl.Run(ctx)

	exitCtx, exitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer exitCancel()
	ctl.ExitAll(exitCtx)
	log.Info().Msg("exited")
}
