package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"glb-optimizer/internal/optimization"
)

const (
	defaultPort        = "8080"
	defaultMaxUploadMB = 256
)

// Config holds all configuration values from environment.
type Config struct {
	AppPort string

	// Optimizer settings
	ResourceDir string // Directory holding the bundled sidecar; empty means next to the executable
	Interpreter string // Script interpreter (default: node)
	ScriptPath  string // Helper script relative to ResourceDir (default: sidecar/optimize-glb.js)
	MaxUploadMB int    // Upload body limit for the HTTP endpoint (default: 256)

	DBHost         string
	DBPort         string
	DBUser         string
	DBPassword     string
	DBName         string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioSSL       bool
}

// LoadDotEnv loads variables from a .env file. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	minioSSL := false
	if sslEnv := os.Getenv("MINIO_SSL"); sslEnv != "" {
		val, err := strconv.ParseBool(sslEnv)
		if err != nil {
			return nil, fmt.Errorf("invalid MINIO_SSL value: %v", err)
		}
		minioSSL = val
	}
	maxUploadMB := defaultMaxUploadMB
	if limitEnv := os.Getenv("MAX_UPLOAD_MB"); limitEnv != "" {
		val, err := strconv.Atoi(limitEnv)
		if err != nil || val <= 0 {
			return nil, fmt.Errorf("invalid MAX_UPLOAD_MB value: %q", limitEnv)
		}
		maxUploadMB = val
	}
	port := os.Getenv("OPTIMIZER_PORT")
	if port == "" {
		port = defaultPort
	}
	cfg := &Config{
		AppPort:     port,
		ResourceDir: os.Getenv("RESOURCE_DIR"),
		Interpreter: envOr("OPTIMIZER_INTERPRETER", optimization.DefaultInterpreter),
		ScriptPath:  envOr("OPTIMIZER_SCRIPT", optimization.DefaultScriptPath),
		MaxUploadMB: maxUploadMB,

		DBHost:         os.Getenv("DB_HOST"),
		DBPort:         envOr("DB_PORT", "5432"),
		DBUser:         os.Getenv("DB_USER"),
		DBPassword:     os.Getenv("DB_PASSWORD"),
		DBName:         os.Getenv("DB_NAME"),
		MinioEndpoint:  os.Getenv("MINIO_ENDPOINT"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    os.Getenv("MINIO_BUCKET"),
		MinioSSL:       minioSSL,
	}
	return cfg, nil
}

// ValidateServer checks the settings the HTTP service needs on top of the
// optimizer itself.
func (c *Config) ValidateServer() error {
	if c.DBHost == "" || c.DBUser == "" || c.DBName == "" {
		return fmt.Errorf("database configuration is incomplete")
	}
	if c.MinioEndpoint == "" || c.MinioAccessKey == "" || c.MinioSecretKey == "" || c.MinioBucket == "" {
		return fmt.Errorf("minio configuration is incomplete")
	}
	return nil
}

// NewCommand builds the optimization command described by the config.
func (c *Config) NewCommand() *optimization.Command {
	var resourceDir optimization.ResourceDirFunc
	if c.ResourceDir != "" {
		resourceDir = optimization.StaticDir(c.ResourceDir)
	}
	return optimization.NewCommand(c.Interpreter, c.ScriptPath, resourceDir)
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName)
}

// ConnectDatabase initializes a GORM database connection to PostgreSQL.
func ConnectDatabase(cfg *Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		return nil, errors.Wrap(err, "could not open database")
	}
	return db, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
