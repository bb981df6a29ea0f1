package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/danish78691223/chatapp/internal/call"
	"github.com/danish78691223/chatapp/internal/domain"
)

func main() {
	// godotenv.Load does not overwrite existing env vars.
	_ = godotenv.Load()

	defaultServer := os.Getenv("CHATAPP_SERVER")
	if defaultServer == "" {
		defaultServer = "ws://localhost:8080/api/ws/signal"
	}

	server := pflag.String("server", defaultServer, "signaling server websocket URL")
	identity := pflag.String("identity", os.Getenv("CHATAPP_IDENTITY"), "participant identity (random if empty)")
	room := pflag.String("room", os.Getenv("CHATAPP_ROOM"), "call room to join (empty for direct calls only)")
	callTo := pflag.String("call", "", "identity to place a direct call to")
	debug := pflag.Bool("debug", false, "verbose logging")
	pflag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	self := domain.Identity(*identity)
	if self == "" {
		self = domain.Identity(uuid.NewString())
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client := call.NewClient(*server, self)

	orch := call.NewOrchestrator(
		self,
		client,
		func() (call.Peer, error) { return call.NewPionPeer(call.DefaultWebRTCConfig()) },
		call.NewStaticMedia,
		func(key call.Key, track *webrtc.TrackRemote) {
			log.Info().
				Str("room", string(key.Room)).
				Str("peer", string(key.Peer)).
				Str("kind", track.Kind().String()).
				Msg("remote track")
		},
	)
	client.SetHandler(orch)

	if err := client.Connect(); err != nil {
		log.Fatal().Err(err).Msg("connect")
	}

	if *room != "" {
		if err := orch.JoinRoom(domain.RoomID(*room)); err != nil {
			log.Fatal().Err(err).Msg("join room")
		}
	}
	if *callTo != "" {
		orch.StartCall(domain.Identity(*callTo))
	}

	<-ctx.Done()
	log.Info().Msg("hanging up")

	if *room != "" {
		_ = orch.LeaveRoom(domain.RoomID(*room))
	}
	if *callTo != "" {
		orch.EndCall(domain.Identity(*callTo))
	}
	orch.Close()
	client.Close()
}
