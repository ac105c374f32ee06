package cli

import (
	"context"

	"github.com/okian/killfeed/internal/adapters/dispatch"
	"github.com/okian/killfeed/internal/adapters/hooks"
	"github.com/okian/killfeed/internal/adapters/logtail"
	"github.com/okian/killfeed/internal/adapters/remote"
	"github.com/okian/killfeed/internal/adapters/repository"
	service "github.com/okian/killfeed/internal/app"
	"github.com/okian/killfeed/internal/config"
	"github.com/okian/killfeed/internal/domain/patterns"
	"github.com/okian/killfeed/pkg/logger"
)

func newClient(cfg *config.Config) (*remote.Client, error) {
	return remote.NewClient(remote.Config{
		BaseURL:       cfg.APIBaseURL,
		APIKey:        cfg.APIKey,
		ClientID:      cfg.ClientID,
		ClientVersion: cfg.ClientVersion,
		Player:        cfg.Player,
		Timeout:       cfg.RequestTimeout(),
	})
}

func newStore(ctx context.Context, cfg *config.Config, log logger.Logger) (*repository.JSONStore, error) {
	return repository.NewJSONStore(ctx, cfg.StorePath(), repository.WithLogger(log.Named("store")))
}

// newHooks builds the accepted-event side effects that are configured.
// Unconfigured hooks stay nil interfaces.
func newHooks(cfg *config.Config) (clip hooks.ClipCreator, keys hooks.KeyPresser, chat hooks.ChatSender, err error) {
	if cfg.ClipEndpoint != "" {
		clip = hooks.NewGroupedClipper(hooks.NewHTTPClipper(cfg.ClipEndpoint), cfg.ClipWindow())
	}
	if cfg.KeypressCommand != "" {
		k, kerr := hooks.NewCommandKeyPresser(cfg.KeypressCommand)
		if kerr != nil {
			return nil, nil, nil, kerr
		}
		keys = k
	}
	if cfg.WebhookURL != "" {
		c, cerr := hooks.NewWebhookChat(cfg.WebhookURL, cfg.ChatTemplate)
		if cerr != nil {
			return nil, nil, nil, cerr
		}
		chat = c
	}
	return clip, keys, chat, nil
}

// serviceOptions maps configuration onto service options shared by every
// command.
func serviceOptions(cfg *config.Config, log logger.Logger) []service.Option {
	return []service.Option{
		service.WithLogger(log.Named("service")),
		service.WithIdentity(cfg.Player),
		service.WithLibrary(patterns.New(patterns.WithLogger(log.Named("patterns")))),
		service.WithMailboxSize(cfg.MailboxSize),
		service.WithDispatchOptions(
			dispatch.WithStagger(cfg.BulkStagger()),
			dispatch.WithMaxAttempts(cfg.BulkMaxAttempts),
			dispatch.WithBackoff(cfg.BulkInitialBackoff(), cfg.BulkMaxBackoff()),
		),
		service.WithTailerOptions(
			logtail.WithPollInterval(cfg.PollInterval()),
			logtail.WithRetryDelay(cfg.RetryDelay()),
		),
	}
}
