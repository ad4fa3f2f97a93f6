package bot

import (
	"AkhilTG/tvsb/config"
	"fmt"
	"path/filepath"

	"github.com/celestix/gotgproto"
	"github.com/celestix/gotgproto/sessionMaker"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
)

// StartClient connects and authorizes the home bot client. The session is
// persisted under SESSION_DIR so restarts skip the login dance.
func StartClient(log *zap.Logger) (*gotgproto.Client, error) {
	log = log.Named("Bot")
	sessionPath := filepath.Join(config.ValueOf.SessionDir, "tvsb.session")
	client, err := gotgproto.NewClient(
		int(config.ValueOf.ApiID),
		config.ValueOf.ApiHash,
		gotgproto.ClientTypeBot(config.ValueOf.BotToken),
		&gotgproto.ClientOpts{
			Session:          sessionMaker.SqlSession(sqlite.Open(sessionPath)),
			DisableCopyright: true,
			Middlewares:      GetFloodMiddleware(log),
		},
	)
	if err != nil {
		return nil, fmt.Errorf("start home client: %w", err)
	}
	log.Sugar().Infof("Home bot connected as @%s", client.Self.Username)
	return client, nil
}
