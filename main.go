package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/MicahParks/keyfunc"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/asifanwar1/taskothon/api"
	"github.com/asifanwar1/taskothon/archive"
	"github.com/asifanwar1/taskothon/auth"
	"github.com/asifanwar1/taskothon/export"
	"github.com/asifanwar1/taskothon/kv"
	"github.com/asifanwar1/taskothon/notify"
	"github.com/asifanwar1/taskothon/storage"
	"github.com/asifanwar1/taskothon/store"
	"github.com/asifanwar1/taskothon/tasks"
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	logger := log.New()

	dbPath := os.Getenv("SQLITE_PATH")
	if dbPath == "" {
		dbPath = "taskothon.db"
	}
	db, err := storage.Open(dbPath)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	defer db.Close()

	redisConn := os.Getenv("REDIS_CONNECTION_STRING")
	if redisConn == "" {
		log.Fatal("missing redis config")
	}
	redisOpts, err := redis.ParseURL(redisConn)
	if err != nil {
		parts := strings.Split(redisConn, ",")
		redisOpts = &redis.Options{Addr: parts[0]}
		for _, p := range parts[1:] {
			kvp := strings.SplitN(p, "=", 2)
			if len(kvp) != 2 {
				continue
			}
			switch strings.ToLower(kvp[0]) {
			case "password":
				redisOpts.Password = kvp[1]
			case "ssl":
				if strings.ToLower(kvp[1]) == "true" {
					redisOpts.TLSConfig = &tls.Config{}
				}
			}
		}
	}
	rc := redis.NewClient(redisOpts)
	kvStore := kv.New(rc, "taskothon")

	testMode := os.Getenv("AUTH0_TEST_MODE") == "1"
	var validator *auth.Validator
	var issuer auth.TokenIssuer
	if testMode {
		secret := os.Getenv("AUTH_TEST_SECRET")
		if secret == "" {
			log.Fatal("missing AUTH_TEST_SECRET")
		}
		validator = auth.NewTestValidator([]byte(secret))
		issuer = auth.NewPasswordlessIssuer("", "", "")
	} else {
		jwtAudience := os.Getenv("AUTH0_AUDIENCE")
		tenant := os.Getenv("AUTH0_DOMAIN")
		clientID := os.Getenv("AUTH0_CLIENT_ID")
		if jwtAudience == "" || tenant == "" || clientID == "" {
			log.Fatal("missing Auth0 config")
		}
		jwksURL := fmt.Sprintf("https://%s/.well-known/jwks.json", tenant)
		jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{})
		if err != nil {
			log.Fatalf("jwks: %v", err)
		}
		validator = auth.NewValidator(jwks, jwtAudience, "https://"+tenant+"/")
		issuer = auth.NewPasswordlessIssuer(tenant, clientID, jwtAudience)
	}

	ctx := context.Background()
	session := auth.NewService(ctx, validator, kvStore, logger)
	dialog := auth.NewFlow(issuer, session)
	ids := store.NewIdentityStore(session)
	cache := store.NewTaskCache(db, ids, logger)
	svc := tasks.New(db, ids, nil)

	archiveDir := os.Getenv("ARCHIVE_DIR")
	if archiveDir == "" {
		archiveDir = "."
	}
	exporter := export.NewExcel(archiveDir)
	notifier := notify.NewLogger(logger)
	archiver := archive.New(db, kvStore, exporter, notifier, ids, logger, nil)
	scheduler := archive.NewScheduler(archiver, archive.DefaultDelay, logger)
	scheduler.Arm()
	defer scheduler.Cancel()

	e := echo.New()
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	api.Register(e, svc, archiver, dialog, exporter, cache, logger)

	listenAddr := ":8080"
	if val, ok := os.LookupEnv("TASKOTHON_PORT"); ok {
		listenAddr = ":" + val
	}

	e.Logger.Fatal(e.Start(listenAddr))
}
