package warden

import (
	"context"
	"time"

	"github.com/intrntsrfr/meido/pkg/mio"
	"github.com/intrntsrfr/meido/pkg/mio/bot"
	"github.com/intrntsrfr/meido/pkg/utils"
	"github.com/intrntsrfr/warden/kvstore"
)

type Bot struct {
	Bot    *bot.Bot
	logger mio.Logger
	config *utils.Config
	store  *Store
	cache  *kvstore.Cache
	gcTick time.Duration
}

// NewBot wires the store into a meido bot. cache may be nil; when set, its
// value log is garbage collected every gcInterval while the bot runs.
func NewBot(config *utils.Config, store *Store, cache *kvstore.Cache, gcInterval time.Duration, logger mio.Logger) *Bot {
	logger = logger.Named("bot")

	b := bot.NewBotBuilder(config).
		WithDefaultHandlers().
		WithLogger(logger).
		Build()

	return &Bot{
		Bot:    b,
		logger: logger,
		config: config,
		store:  store,
		cache:  cache,
		gcTick: gcInterval,
	}
}

func (b *Bot) Run(ctx context.Context) error {
	b.registerModules()
	b.registerDiscordHandlers()
	b.registerMioHandlers()
	if b.cache != nil && b.gcTick > 0 {
		go b.cache.RunGC(ctx, b.gcTick)
	}
	return b.Bot.Run(ctx)
}

func (b *Bot) Close() {
	b.Bot.Close()
}

func (b *Bot) registerModules() {
	modules := []bot.Module{
		NewModule(b.Bot, b.store, b.logger),
	}
	for _, mod := range modules {
		b.Bot.RegisterModule(mod)
	}
}

func (b *Bot) registerDiscordHandlers() {
	b.Bot.Discord.AddEventHandler(disconnectHandler(b))
	b.Bot.Discord.AddEventHandler(channelDeleteHandler(b))
	b.Bot.Discord.AddEventHandler(guildRoleDeleteHandler(b))
	b.Bot.Discord.AddEventHandler(guildMemberRemoveHandler(b))
	b.Bot.Discord.AddEventHandler(guildDeleteHandler(b))
}

func (b *Bot) registerMioHandlers() {
	b.Bot.AddHandler(logApplicationCommandPanicked(b))
	b.Bot.AddHandler(logApplicationCommandRan(b))
}
