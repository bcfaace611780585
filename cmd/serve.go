package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/habedi/totempark/account"
	"github.com/habedi/totempark/api"
	"github.com/habedi/totempark/auth"
	"github.com/habedi/totempark/client"
	"github.com/habedi/totempark/config"
	"github.com/habedi/totempark/db"
	"github.com/habedi/totempark/pkg/keylock"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the back-office HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.ValidateServe(); err != nil {
				return err
			}
			if addr != "" {
				cfg.ListenAddr = addr
			}
			if cfg.IsProduction() {
				gin.SetMode(gin.ReleaseMode)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer app.Close()
			return app.Server.Run(ctx, cfg.ListenAddr)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Address to listen on; overrides LISTEN_ADDR")
	return cmd
}

// app is a fully wired server and the resources it owns.
type app struct {
	Store  *store
	Tokens *auth.Service
	Server *api.Server

	redis *redis.Client
}

// newApp opens the store and builds every service from cfg. When REDIS_URL
// is set, token refreshes are also serialised across instances.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	st, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	a := &app{Store: st}

	opts := auth.Options{
		StaleThreshold: cfg.TokenStaleThreshold,
		RefreshTimeout: cfg.RefreshTimeout,
	}
	if cfg.RedisURL != "" {
		rdb, err := keylock.Dial(ctx, cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.redis = rdb
		opts.Locker = keylock.NewRedis(rdb, "totempark:")
		log.Info().Msg("Distributed refresh lock enabled")
	}

	mp := mercadoPago(cfg)
	a.Tokens = auth.NewService(st.Credentials, mp, opts)
	accounts := account.NewService(st.Sellers, account.NewTokens(cfg.SecretKey, cfg.AccessTokenTTL, nil))

	server, err := api.NewServer(api.Deps{
		Accounts: accounts,
		Sellers:  st.Sellers,
		Totems:   st.Totems,
		Events:   st.Events,
		Linker:   auth.NewLinker(st.Sellers, st.Credentials, mp, nil),
		Issuer:   auth.NewIssuer(st.Totems, a.Tokens),
		Ping: func(ctx context.Context) error {
			return db.Ping(ctx, st.gdb)
		},
	}, api.Options{
		TotemAPIKey:     cfg.TotemAPIKey,
		DashboardURL:    cfg.DashboardURL,
		LoginRateLimit:  cfg.LoginRateLimit,
		LoginRateWindow: time.Minute,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Server = server
	return a, nil
}

func mercadoPago(cfg *config.Config) *client.MercadoPago {
	return client.NewMercadoPago(client.Config{
		ClientID:     cfg.MPAppID,
		ClientSecret: cfg.MPSecretKey,
		RedirectURL:  cfg.MPRedirectURI,
		AuthURL:      cfg.MPAuthURL,
		TokenURL:     cfg.MPTokenURL,
		Timeout:      cfg.ProcessorTimeout,
	})
}

func (a *app) Close() {
	if a.Server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.Server.Close(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to close rate limiter")
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close Redis client")
		}
	}
	a.Store.Close()
}
