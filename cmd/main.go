package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"cloudsyncdrive/internal/auth"
	"cloudsyncdrive/internal/config"
	"cloudsyncdrive/internal/handler"
	"cloudsyncdrive/internal/repository"
	"cloudsyncdrive/internal/service"
	"cloudsyncdrive/internal/storage"
)

func connectWithRetry(dsn string, maxAttempts int, delay time.Duration) (*sqlx.DB, error) {
	var db *sqlx.DB
	var err error

	for i := 0; i < maxAttempts; i++ {
		db, err = sqlx.Connect("postgres", dsn)
		if err == nil {
			return db, nil
		}

		log.Printf("Failed to connect to database (attempt %d/%d): %v", i+1, maxAttempts, err)
		time.Sleep(delay)
	}

	return nil, fmt.Errorf("failed to connect after %d attempts: %v", maxAttempts, err)
}

func runMigrations(cfg *config.Config) error {
	databaseURL := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)

	var m *migrate.Migrate
	var err error

	for i := 0; i < 5; i++ {
		m, err = migrate.New("file://migrations", databaseURL)
		if err == nil {
			break
		}
		log.Printf("Failed to create migrate instance (attempt %d/5): %v", i+1, err)
		time.Sleep(time.Second * 5)
	}

	if err != nil {
		return fmt.Errorf("failed to create migrate instance after retries: %w", err)
	}
	defer m.Close()

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if dirty {
		log.Printf("Found dirty database state at version %d, attempting to force version", version)
		if err := m.Force(int(version)); err != nil {
			return fmt.Errorf("failed to force version: %w", err)
		}
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// newBackend выбирает физическое хранилище по конфигурации.
func newBackend(cfg *storage.Config) (storage.Backend, error) {
	switch cfg.Type {
	case "s3":
		return storage.NewS3Backend(&cfg.S3)
	default:
		return storage.NewLocalBackend(&cfg.Local)
	}
}

func main() {
	// Загружаем конфигурации
	appConfig, err := config.NewConfig(".app.env")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Подключаемся к базе данных
	db, err := connectWithRetry(appConfig.Database.GetDSN(), 5, time.Second*5)
	if err != nil {
		log.Fatalf("Failed to connect to database after retries: %v", err)
	}
	defer db.Close()

	if err := runMigrations(appConfig); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	// Инициализация хранилища файлов
	storageConfig, err := storage.NewConfig(".storage.env")
	if err != nil {
		log.Fatalf("Failed to load storage config: %v", err)
	}

	backend, err := newBackend(storageConfig)
	if err != nil {
		log.Fatalf("Failed to create storage backend: %v", err)
	}
	log.Printf("Using %s storage backend", storageConfig.Type)

	// Проверка JWT выполняется внутри процесса, без внешнего сервиса
	auth.Init(appConfig.Auth.JWTSecret)

	// Инициализация репозиториев
	userRepo := repository.NewUserRepository(db)
	fileRepo := repository.NewFileRepository(db)
	folderRepo := repository.NewFolderRepository(db)
	shareRepo := repository.NewShareRepository(db)
	activityRepo := repository.NewActivityRepository(db)

	// Инициализация сервисов
	activityService := service.NewActivityService(activityRepo)
	retention := service.NewVersionRetentionManager(fileRepo, backend)
	fileService := service.NewFileService(fileRepo, userRepo, folderRepo, backend, retention, activityService)
	folderService := service.NewFolderService(folderRepo, activityService)
	quotaService := service.NewStorageQuotaService(userRepo)
	authService := service.NewAuthService(
		userRepo,
		appConfig.Auth.JWTSecret,
		time.Duration(appConfig.Auth.TokenTTLHours)*time.Hour,
		appConfig.Auth.DefaultStorageLimit,
	)
	shareService := service.NewShareService(
		shareRepo,
		fileRepo,
		folderRepo,
		userRepo,
		fileService,
		activityService,
		appConfig.Server.BaseURL,
	)

	// Инициализация хендлеров
	authHandler := handler.NewAuthHandler(authService)
	fileHandler := handler.NewFileHandler(fileService)
	folderHandler := handler.NewFolderHandler(folderService)
	shareHandler := handler.NewShareHandler(shareService)
	quotaHandler := handler.NewQuotaHandler(quotaService)
	activityHandler := handler.NewActivityHandler(activityService)

	// Настройка HTTP роутера
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Minute))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)

			r.Group(func(r chi.Router) {
				r.Use(auth.Middleware)
				r.Get("/me", authHandler.Me)
			})
		})

		// Всё остальное требует валидного токена
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware)

			r.Route("/files", func(r chi.Router) {
				r.Post("/", fileHandler.Upload)
				r.Get("/", fileHandler.List)
				r.Get("/search", fileHandler.Search)
				r.Get("/search/type", fileHandler.SearchByType)
				r.Get("/recent", fileHandler.Recent)

				r.Route("/{uuid}", func(r chi.Router) {
					r.Get("/", fileHandler.GetInfo)
					r.Put("/", fileHandler.Update)
					r.Delete("/", fileHandler.Delete)
					r.Get("/download", fileHandler.Download)
					r.Get("/versions", fileHandler.ListVersions)
					r.Get("/versions/{version}/download", fileHandler.DownloadVersion)
					r.Post("/versions/{version}/restore", fileHandler.RestoreVersion)
				})
			})

			r.Route("/folders", func(r chi.Router) {
				r.Post("/", folderHandler.Create)
				r.Get("/", folderHandler.List)
				r.Get("/tree", folderHandler.Tree)
				r.Get("/{id}", folderHandler.Get)
				r.Get("/{id}/files", fileHandler.ListInFolder)
				r.Put("/{id}/rename", folderHandler.Rename)
				r.Delete("/{id}", folderHandler.Delete)
			})

			r.Route("/shares", func(r chi.Router) {
				r.Post("/", shareHandler.Create)
				r.Get("/", shareHandler.ListMine)
				r.Get("/shared-with-me", shareHandler.ListSharedWithMe)
				r.Get("/{id}/download", shareHandler.Download)
				r.Patch("/{id}/expiry", shareHandler.UpdateExpiry)
				r.Delete("/{id}", shareHandler.Revoke)
			})

			r.Route("/quota", func(r chi.Router) {
				r.Get("/", quotaHandler.Get)
				r.Put("/limit", quotaHandler.Update)
			})

			r.Get("/activities", activityHandler.List)
		})
	})

	// Публичные ссылки работают без токена
	r.Route("/public/shares/{token}", func(r chi.Router) {
		r.Get("/", shareHandler.Resolve)
		r.Get("/download", shareHandler.DownloadShared)
	})

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", appConfig.Server.Port),
		Handler: r,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Starting HTTP server on port %s", appConfig.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server forced to shutdown: %v", err)
	}

	if err := db.Close(); err != nil {
		log.Printf("Error closing database connection: %v", err)
	}

	log.Println("Server exited properly")
}
