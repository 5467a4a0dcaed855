package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/crystal-mush/chroniclemush/pkg/boltstore"
	"github.com/crystal-mush/chroniclemush/pkg/events"
	"github.com/crystal-mush/chroniclemush/pkg/gamedb"
	"github.com/crystal-mush/chroniclemush/pkg/server"
)

// envDefault returns the environment variable value if set, otherwise the fallback.
func envDefault(envVar, fallback string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return fallback
}

func main() {
	confFile := flag.String("conf", envDefault("MUSH_CONF", ""), "Path to game config file (env: MUSH_CONF)")
	boltPath := flag.String("bolt", "", "Path to bbolt database, overrides db_path (env: MUSH_DB)")
	port := flag.Int("port", 0, "TCP port to listen on, overrides config (env: MUSH_PORT)")
	templateDir := flag.String("templates", "", "Mystery template directory, overrides template_dir (env: MUSH_TEMPLATES)")
	journalPath := flag.String("journal", "", "SQLite journal path, overrides journal_path (env: MUSH_JOURNAL)")
	godPass := flag.String("godpass", envDefault("MUSH_GODPASS", ""), "Set the Wizard (#1) password at startup (env: MUSH_GODPASS)")
	genSecret := flag.Bool("gen-jwt-secret", false, "Print a random jwt_secret and exit")
	flag.Parse()

	if *genSecret {
		fmt.Println(server.GenerateJWTSecret())
		return
	}

	log.Printf("Welcome to %s", server.VersionString())

	gc, err := server.LoadGameConf(*confFile)
	if err != nil {
		log.Fatalf("Error loading game config: %v", err)
	}
	if *confFile != "" {
		log.Printf("Loaded game config from %s", *confFile)
	}
	if err := gc.ApplyEnv(); err != nil {
		log.Fatalf("Error in environment config: %v", err)
	}

	// Command-line flags override config file and environment values
	if *port != 0 {
		gc.Port = *port
	}
	if *boltPath != "" {
		gc.DBPath = *boltPath
	}
	if *templateDir != "" {
		gc.TemplateDir = *templateDir
	}
	if *journalPath != "" {
		gc.JournalPath = *journalPath
	}
	if gc.TLSPort == 0 {
		gc.TLSPort = gc.Port + 1
	}

	if dir := filepath.Dir(gc.DBPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("Error creating data directory %s: %v", dir, err)
		}
	}
	store, err := boltstore.Open(gc.DBPath)
	if err != nil {
		log.Fatalf("Error opening bolt database: %v", err)
	}
	defer store.Close()

	if store.HasData() {
		log.Printf("Loading database from bbolt: %s", gc.DBPath)
		if err := store.LoadAll(); err != nil {
			log.Fatalf("Error loading from bolt: %v", err)
		}
	} else {
		log.Printf("Empty database at %s, creating the starting world", gc.DBPath)
		if err := store.Import(seedWorld(gc.MudName)); err != nil {
			log.Fatalf("Error seeding bolt database: %v", err)
		}
	}

	game := server.NewGame(store.DB())
	game.Store = store
	if err := store.LoadMysteries(game.Mysteries); err != nil {
		log.Fatalf("Error loading mysteries: %v", err)
	}
	game.ApplyGameConf(gc)

	if *godPass != "" {
		wiz := gamedb.DBRef(1)
		if _, ok := game.DB.Objects[wiz]; !ok {
			log.Fatalf("Wizard #%d not found in database", wiz)
		}
		if err := server.SetPassword(game.DB, wiz, *godPass); err != nil {
			log.Fatalf("Error setting Wizard password: %v", err)
		}
		game.PersistObject(game.DB.Objects[wiz])
		log.Printf("Wizard (#%d) password set at startup.", wiz)
	}

	if gc.JournalPath != "" {
		journal, err := server.OpenJournal(gc.JournalPath)
		if err != nil {
			log.Printf("WARNING: investigation journal disabled: %v", err)
		} else {
			game.Journal = journal
			game.EventBus.SubscribeGlobal(journal, events.Investigation...)
			log.Printf("Investigation journal: %s", journal.Path())
		}
	}

	stopWatch := func() {}
	if gc.WatchFiles {
		stopWatch = game.WatchTemplates()
	}

	srv := server.NewServer(game, server.ConfigFromGameConf(gc))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received %s, shutting down", sig)
		srv.Stop()
	}()

	log.Printf("Starting %s on port %d...", gc.MudName, gc.Port)
	runErr := srv.Start()

	stopWatch()
	if game.Journal != nil {
		if err := game.Journal.Close(); err != nil {
			log.Printf("WARNING: closing journal: %v", err)
		}
	}
	if gc.BackupDir != "" {
		backup(store, gc.BackupDir)
	}
	if runErr != nil {
		log.Fatalf("Server error: %v", runErr)
	}
	log.Printf("Shutdown complete.")
}

// seedWorld builds the minimal world a new game starts with: a starting
// room and the Wizard who administers it.
func seedWorld(mudName string) *gamedb.Database {
	db := gamedb.NewDatabase()
	now := time.Now()

	room := &gamedb.Object{
		DBRef:      0,
		Name:       "The Crossroads",
		Location:   gamedb.Nothing,
		Contents:   1,
		Exits:      gamedb.Nothing,
		Link:       gamedb.Nothing,
		Next:       gamedb.Nothing,
		Owner:      1,
		Flags:      [3]int{int(gamedb.TypeRoom), 0, 0},
		LastAccess: now,
		LastMod:    now,
	}
	room.SetAttr(gamedb.A_DESC, fmt.Sprintf("Streetlights flicker over the heart of %s. Every road leads somewhere you would rather not go.", mudName))

	wiz := &gamedb.Object{
		DBRef:      1,
		Name:       "Wizard",
		Location:   0,
		Contents:   gamedb.Nothing,
		Exits:      gamedb.Nothing,
		Link:       0,
		Next:       gamedb.Nothing,
		Owner:      1,
		Flags:      [3]int{int(gamedb.TypePlayer) | gamedb.FlagWizard, 0, 0},
		LastAccess: now,
		LastMod:    now,
	}

	db.Objects[0] = room
	db.Objects[1] = wiz
	db.Size = 2
	return db
}

// backup writes a timestamped bolt snapshot into dir.
func backup(store *boltstore.Store, dir string) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Printf("WARNING: backup directory %s: %v", dir, err)
		return
	}
	path := filepath.Join(dir, fmt.Sprintf("game-%s.bolt", time.Now().Format("20060102-150405")))
	if err := store.Backup(path); err != nil {
		log.Printf("WARNING: backup failed: %v", err)
	}
}
