package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	"github.com/minio/minio-go/v7"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	_ "glb-optimizer/docs"
	"glb-optimizer/internal/config"
	"glb-optimizer/internal/handlers"
	"glb-optimizer/internal/metrics"
	"glb-optimizer/internal/repository"
	"glb-optimizer/internal/services"
	"glb-optimizer/internal/storage"
)

func main() {
	// Handle subcommands before flag parsing.
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "optimize":
			optimizeCmd := flag.NewFlagSet("optimize", flag.ExitOnError)
			optimizeCmd.Usage = func() {
				fmt.Fprintf(os.Stderr, "Usage: glb-optimizer optimize [flags] <input.glb> <config>\n\n"+
					"Optimize a GLB file and print the script's report.\n"+
					"<config> is JSON text, @file.json or @file.yaml.\n\nFlags:\n")
				optimizeCmd.PrintDefaults()
			}
			envFile := optimizeCmd.String("env", ".env", "path to .env file (ignored if missing)")
			_ = optimizeCmd.Parse(os.Args[2:])
			if optimizeCmd.NArg() != 2 {
				optimizeCmd.Usage()
				os.Exit(2)
			}

			report, err := runOptimize(*envFile, optimizeCmd.Arg(0), optimizeCmd.Arg(1))
			if err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				os.Exit(1)
			}
			fmt.Print(report)
			return
		case "serve":
			os.Args = append(os.Args[:1], os.Args[2:]...)
		}
	}

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: glb-optimizer [serve] [flags]\n       glb-optimizer optimize [flags] <input.glb> <config>\n\nFlags:\n")
		flag.PrintDefaults()
	}
	envFile := flag.String("env", ".env", "path to .env file (ignored if missing)")
	flag.Parse()

	serve(*envFile)
}

// runOptimize runs a single optimization outside the HTTP service.
func runOptimize(envFile, inputPath, configArg string) (string, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return "", err
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		return "", err
	}
	configText, err := resolveConfigArg(configArg)
	if err != nil {
		return "", err
	}
	return cfg.NewCommand().Execute(inputPath, configText)
}

func serve(envFile string) {
	cfg := InitConfig(envFile)
	db := ConnectDatabase(cfg)
	repo := MigrateDatabase(db)
	minioClient := InitMinIOClient(cfg)

	m := metrics.NewMetrics(prometheus.DefaultRegisterer)
	store := storage.NewMinioStore(minioClient, cfg.MinioBucket)
	optimizationService := services.NewOptimizationService(cfg.NewCommand(), repo, store, m)

	app := fiber.New(fiber.Config{
		BodyLimit:   cfg.MaxUploadMB << 20,
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,
	})

	//Register Prometheus metrics endpoint
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	h := handlers.NewOptimizationHandler(optimizationService, m)
	api := app.Group("/api")
	api.Post("/optimize", h.Optimize)
	api.Get("/optimizations", h.ListOptimizations)
	api.Get("/optimizations/:id", h.GetOptimization)
	api.Delete("/optimizations/:id", h.DeleteOptimization)
	api.Get("/optimizations/:id/download", h.DownloadOptimization)
	api.Get("/settings/default", handlers.DefaultSettings)

	api.Get("/swagger/*", swagger.HandlerDefault)

	// Add Health check endpoint
	api.Get("/health", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	routes := app.GetRoutes()
	log.Println("Registered routes:")
	for _, r := range routes {
		log.Printf("  %s %s\n", r.Method, r.Path)
	}

	log.Printf("Optimizer: Interpreter=%s, Script=%s, ResourceDir=%q", cfg.Interpreter, cfg.ScriptPath, cfg.ResourceDir)
	log.Printf("Server listening on port %s", cfg.AppPort)
	log.Fatal(app.Listen(":" + cfg.AppPort))
}

func InitConfig(envFile string) *config.Config {
	if err := config.LoadDotEnv(envFile); err != nil {
		log.Fatalf("Config error: %v", err)
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}
	if err := cfg.ValidateServer(); err != nil {
		log.Fatalf("Config error: %v", err)
	}
	return cfg
}

func ConnectDatabase(cfg *config.Config) *gorm.DB {
	db, err := config.ConnectDatabase(cfg)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	return db
}

func MigrateDatabase(db *gorm.DB) *repository.OptimizationRepositoryImpl {
	repo := repository.NewOptimizationRepository(db)
	if err := repo.Migrate(); err != nil {
		log.Fatalf("Database migration failed: %v", err)
	}
	return repo
}

func InitMinIOClient(cfg *config.Config) *minio.Client {
	minioClient, err := storage.NewMinioClient(cfg)
	if err != nil {
		log.Fatalf("MinIO client initialization failed: %v", err)
	}
	return minioClient
}
