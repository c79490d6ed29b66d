package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/intrntsrfr/warden"
	"github.com/intrntsrfr/warden/config"
	"github.com/intrntsrfr/warden/database"
	"go.uber.org/zap"
)

const usage = `usage: wardenctl [-config path] <command> [args]

commands:
  migrate
  words list
  words add <word>
  words remove <word>
  settings get <guild>
  settings set <guild> [-channel id] [-clear-channel] [-moderators ids]
                       [-roles ids] [-links links] [-ignored ids]
  settings delete <guild>
  policy get <guild>
  policy set <guild> <type> <seconds>
  policy delete <guild>
`

var errUsage = errors.New("bad usage")

func main() {
	path := flag.String("config", "", "path to a json or yaml config file, environment only when empty")
	timeout := flag.Duration("timeout", 30*time.Second, "timeout for the whole command")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	cfg, err := loadConfig(*path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := warden.NewLogger("wardenctl", "warn")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	db, err := openDB(cfg, logger.Zap())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := run(ctx, db, flag.Args()); err != nil {
		if errors.Is(err, errUsage) {
			flag.Usage()
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		cancel()
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path == "" {
		cfg = config.FromEnv()
	} else if cfg, err = config.Load(path); err != nil {
		return nil, err
	}
	return cfg, cfg.ValidateStore()
}

func openDB(cfg *config.Config, log *zap.Logger) (database.DB, error) {
	if cfg.ConnectionString != "" {
		return database.NewPSQLDatabase(&database.Config{
			Log:     log.Named("database"),
			ConnStr: cfg.ConnectionString,
		})
	}
	return database.NewMemoryDatabase(cfg.DataFile, log.Named("database"))
}

func run(ctx context.Context, db database.DB, args []string) error {
	if len(args) == 0 {
		return errUsage
	}

	switch args[0] {
	case "migrate":
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		fmt.Println("ok")
		return nil
	case "words":
		return runWords(ctx, db, args[1:])
	case "settings":
		return runSettings(ctx, db, args[1:])
	case "policy":
		return runPolicy(ctx, db, args[1:])
	}
	return errUsage
}

func runWords(ctx context.Context, db database.DB, args []string) error {
	if len(args) == 0 {
		return errUsage
	}

	switch {
	case args[0] == "list":
		words, err := db.ProfaneWords(ctx)
		if err != nil {
			return err
		}
		for _, w := range words {
			fmt.Println(w.Word)
		}
		return nil
	case args[0] == "add" && len(args) == 2:
		added, err := db.AddProfaneWord(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Println(changed(added, "added", "already present"))
		return nil
	case args[0] == "remove" && len(args) == 2:
		removed, err := db.RemoveProfaneWord(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Println(changed(removed, "removed", "not present"))
		return nil
	}
	return errUsage
}

func runSettings(ctx context.Context, db database.DB, args []string) error {
	if len(args) < 2 {
		return errUsage
	}
	gid, err := warden.ParseID(args[1])
	if err != nil {
		return err
	}

	switch args[0] {
	case "get":
		gs, err := db.GetGuildSettings(ctx, gid)
		if err != nil {
			return err
		}
		return printJSON(gs)
	case "set":
		opts, err := parseSettingsFlags(args[2:])
		if err != nil {
			return err
		}
		gs, err := db.UpsertGuildSettings(ctx, gid, opts...)
		if err != nil {
			return err
		}
		return printJSON(gs)
	case "delete":
		deleted, err := db.DeleteGuildSettings(ctx, gid)
		if err != nil {
			return err
		}
		fmt.Println(changed(deleted, "deleted", "no settings stored"))
		return nil
	}
	return errUsage
}

// parseSettingsFlags maps only the flags that were given to options, so an
// update never touches fields the operator did not name.
func parseSettingsFlags(args []string) ([]database.SettingsOption, error) {
	fs := flag.NewFlagSet("settings set", flag.ContinueOnError)
	channel := fs.String("channel", "", "notification channel id")
	clearChannel := fs.Bool("clear-channel", false, "unset the notification channel")
	moderators := fs.String("moderators", "", "comma separated user ids, replaces the set")
	roles := fs.String("roles", "", "comma separated role ids, replaces the set")
	links := fs.String("links", "", "comma separated links, replaces the set")
	ignored := fs.String("ignored", "", "comma separated channel ids, replaces the set")
	if err := fs.Parse(args); err != nil {
		return nil, errUsage
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	var opts []database.SettingsOption
	if set["channel"] && set["clear-channel"] {
		return nil, errors.New("-channel and -clear-channel are mutually exclusive")
	}
	if set["channel"] {
		id, err := warden.ParseID(*channel)
		if err != nil {
			return nil, err
		}
		opts = append(opts, database.WithNotificationChannel(id))
	}
	if set["clear-channel"] && *clearChannel {
		opts = append(opts, database.WithoutNotificationChannel())
	}
	if set["moderators"] {
		ids, err := parseIDList(*moderators)
		if err != nil {
			return nil, err
		}
		opts = append(opts, database.WithModerators(ids...))
	}
	if set["roles"] {
		ids, err := parseIDList(*roles)
		if err != nil {
			return nil, err
		}
		opts = append(opts, database.WithModeratorRoles(ids...))
	}
	if set["links"] {
		opts = append(opts, database.WithValidLinks(splitList(*links)...))
	}
	if set["ignored"] {
		ids, err := parseIDList(*ignored)
		if err != nil {
			return nil, err
		}
		opts = append(opts, database.WithIgnoredChannels(ids...))
	}
	return opts, nil
}

func runPolicy(ctx context.Context, db database.DB, args []string) error {
	if len(args) < 2 {
		return errUsage
	}
	gid, err := warden.ParseID(args[1])
	if err != nil {
		return err
	}

	switch {
	case args[0] == "get":
		p, err := db.GetInfractionPolicy(ctx, gid)
		if err != nil {
			return err
		}
		return printJSON(p)
	case args[0] == "set" && len(args) == 4:
		seconds, err := strconv.Atoi(args[3])
		if err != nil {
			return fmt.Errorf("seconds: %w", err)
		}
		p, err := db.SetInfractionPolicy(ctx, gid, args[2], seconds)
		if err != nil {
			return err
		}
		return printJSON(p)
	case args[0] == "delete":
		deleted, err := db.DeleteInfractionPolicy(ctx, gid)
		if err != nil {
			return err
		}
		fmt.Println(changed(deleted, "deleted", "no policy stored"))
		return nil
	}
	return errUsage
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseIDList(s string) ([]int64, error) {
	parts := splitList(s)
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := warden.ParseID(p)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func changed(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
