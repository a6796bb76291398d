package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"poll-voting/internal/app"
	"poll-voting/internal/auth"
	"poll-voting/internal/ballot"
	"poll-voting/internal/config"
	"poll-voting/internal/dedup"
	"poll-voting/internal/kvstore"
	"poll-voting/internal/policy"
	"poll-voting/internal/pollserver"
	httpport "poll-voting/internal/ports/http"
	authmw "poll-voting/internal/ports/http/middleware/auth"
	"poll-voting/internal/relay"
	"poll-voting/internal/voting"

	"github.com/spf13/pflag"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

const (
	siteName        = "Anonymous polls"
	shutdownTimeout = 10 * time.Second
)

var (
	issueTokenFor = pflag.String("issue-token", "", "print an access token for the given voter group URL and exit")
	tokenTTL      = pflag.Duration("token-ttl", 24*time.Hour, "validity of a token printed by --issue-token, 0 for no expiry")
)

func main() {
	config.RegisterFlags(pflag.CommandLine)
	pflag.Parse()

	logger, err := getLogger()
	if err != nil {
		log.Fatalln("setting up the logger failed: ", err)
		return
	}
	defer logger.Sync()

	if err := config.BindFlags(pflag.CommandLine); err != nil {
		logger.Fatal("failed to bind the flags: " + err.Error())
	}
	if *issueTokenFor != "" {
		if err := printToken(os.Stdout, config.GetAccessTokenSecret(), *issueTokenFor, *tokenTTL); err != nil {
			logger.Fatal("issuing the token failed: " + err.Error())
		}
		return
	}

	if err := config.Validate(); err != nil {
		logger.Fatal("invalid configuration: " + err.Error())
	}

	logger.Info("application started")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger); err != nil {
		logger.Error("application failed: " + err.Error())
	}

	logger.Info("application finished")
}

func run(ctx context.Context, logger *zap.Logger) error {
	store, closeStore, err := openStore(logger)
	if err != nil {
		return err
	}
	defer closeStore()

	voted := dedup.NewSet(logger, store)
	if err := voted.Load(ctx); err != nil {
		return err
	}
	ballotVotes := dedup.NewBallotVotes(logger, store)
	if err := ballotVotes.Load(ctx); err != nil {
		return err
	}

	roles, err := loadRoles()
	if err != nil {
		return err
	}

	orderPolicy, err := ballot.ParsePolicy(config.GetOrderPolicy())
	if err != nil {
		return err
	}

	verifier, err := newVerifier(logger)
	if err != nil {
		return err
	}

	httpClient := &http.Client{Timeout: config.GetRequestTimeout()}
	pollServer := pollserver.NewClient(logger, config.GetPollServerURL(), httpClient)

	agent := relay.NewPassportAgent(config.GetPassportURL(), siteName, func(tag, proveURL string) {
		logger.Debug("membership proof requested", zap.String("tag", tag), zap.String("url", proveURL))
	})

	appOrigin := config.GetAppOrigin()
	coordinator := voting.NewCoordinator(logger, voted, pollServer, agent,
		voting.WithProofTimeout(config.GetProofTimeout()),
		voting.WithReturnURL(func(tag string) string { return appOrigin + "/popup/" + tag }),
	)

	listener := relay.NewListener(logger, coordinator.Deliver)

	a, err := app.NewApp(logger, pollServer, roles, ballot.NewReconstructor(logger, orderPolicy), coordinator, agent, listener, ballotVotes)
	if err != nil {
		return err
	}

	validator := authmw.NewTokenValidator(logger, verifier, roles)
	ser := httpport.NewServer(logger, a, validator, config.GetPort(), appOrigin)

	if err := listener.Start(); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(ser.Run)
	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := ser.Shutdown(shutdownCtx)
		if stopErr := listener.Stop(); stopErr != nil && !errors.Is(stopErr, relay.ErrListenerStopped) {
			err = multierr.Append(err, stopErr)
		}
		return err
	})

	return g.Wait()
}

func openStore(logger *zap.Logger) (kvstore.Store, func(), error) {
	switch config.GetDedupStore() {
	case "memory":
		logger.Warn("voted polls are kept in memory only")
		return kvstore.NewMemoryStore(), func() {}, nil
	case "mongodb":
		store, err := kvstore.NewMongoStore(logger, config.GetDbConnectionURI(), config.GetDatabaseName())
		if err != nil {
			return nil, nil, errors.New("failed to connect to the database: " + err.Error())
		}
		return store, store.Disconnect, nil
	}

	store, err := kvstore.NewFileStore(logger, config.GetDedupFile())
	if err != nil {
		return nil, nil, err
	}
	return store, func() {}, nil
}

func loadRoles() (policy.RolePolicy, error) {
	if path := config.GetPolicyFile(); path != "" {
		return policy.LoadFile(path)
	}
	return policy.FromConfig(), nil
}

func newVerifier(logger *zap.Logger) (auth.CredentialVerifier, error) {
	if url := config.GetVerifierURL(); url != "" {
		return auth.NewRemoteVerifier(logger, url, &http.Client{Timeout: config.GetRequestTimeout()})
	}
	return auth.NewVerifier(logger, config.GetAccessTokenSecret()), nil
}

// printToken writes an access token for groupURL, used to try the service
// without a passport server issuing credentials.
func printToken(w io.Writer, secret, groupURL string, ttl time.Duration) error {
	if secret == "" {
		return errors.New("ACCESS_TOKEN_SECRET is not set")
	}

	issuer, err := auth.NewIssuer(secret)
	if err != nil {
		return err
	}
	token, err := issuer.Issue(groupURL, ttl)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(w, token)
	return err
}

func getLogger() (*zap.Logger, error) {
	options := []zap.Option{
		zap.AddCaller(),
		zap.AddStacktrace(zap.FatalLevel),
	}

	config := zap.NewDevelopmentConfig()
	config.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339)
	config.Development = true
	config.Level.SetLevel(zap.DebugLevel)

	logger, err := config.Build()
	if err != nil {
		return nil, err
	}
	return logger.WithOptions(options...), nil
}
