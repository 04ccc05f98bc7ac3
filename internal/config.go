package internal

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/studentpalace/studentpalace/internal/domain"
	"github.com/studentpalace/studentpalace/internal/imageproc"
)

type Config struct {
	Env         string
	Port        int
	LogLevel    string
	DatabaseUrl string

	// Storage Configuration
	StorageProvider string // "local" or "r2"

	// Local Storage (development)
	UploadRoot string // Base directory for local file storage, served at /static/

	// R2 Storage (production)
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string

	// Upload limits
	MaxImageBytes         int64
	MaxPDFBytes           int64
	MaxPhotosPerHouse     int
	MaxPhotosPerRoom      int
	MaxFloorplansPerHouse int

	// Image pipeline
	ResizeBound     int
	LandscapeAspect string // "W:H", e.g. "16:9"
	LetterboxColor  string // "#rrggbb"
	WatermarkText   string
	WatermarkFont   string // optional TTF path; embedded font when empty
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		// Storage defaults to local filesystem for development
		StorageProvider: getEnv("STORAGE_PROVIDER", "local"),
		UploadRoot:      getEnv("UPLOAD_ROOT", "./static"),

		// R2 configuration (production only)
		R2AccountID:       getEnv("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
		R2SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2BucketName:      getEnv("R2_BUCKET_NAME", ""),

		// Upload limits
		MaxImageBytes:         getEnvInt64("MAX_IMAGE_BYTES", 5*1024*1024),
		MaxPDFBytes:           getEnvInt64("MAX_PDF_BYTES", 10*1024*1024),
		MaxPhotosPerHouse:     getEnvInt("MAX_PHOTOS_PER_HOUSE", 5),
		MaxPhotosPerRoom:      getEnvInt("MAX_PHOTOS_PER_ROOM", 5),
		MaxFloorplansPerHouse: getEnvInt("MAX_FLOORPLANS_PER_HOUSE", 10),

		// Image pipeline
		ResizeBound:     getEnvInt("RESIZE_BOUND", imageproc.DefaultBound),
		LandscapeAspect: getEnv("LANDSCAPE_ASPECT", "16:9"),
		LetterboxColor:  getEnv("LETTERBOX_COLOR", "#f9f7ff"),
		WatermarkText:   getEnv("WATERMARK_TEXT", "Student Palace"),
		WatermarkFont:   getEnv("WATERMARK_FONT", ""),
	}

	// Required
	cfg.DatabaseUrl = os.Getenv("DATABASE_URL")
	if cfg.DatabaseUrl == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	// Validate storage configuration
	if cfg.StorageProvider == "r2" {
		if cfg.R2AccountID == "" {
			return nil, fmt.Errorf("R2_ACCOUNT_ID is required when STORAGE_PROVIDER is 'r2'")
		}
		if cfg.R2AccessKeyID == "" {
			return nil, fmt.Errorf("R2_ACCESS_KEY_ID is required when STORAGE_PROVIDER is 'r2'")
		}
		if cfg.R2SecretAccessKey == "" {
			return nil, fmt.Errorf("R2_SECRET_ACCESS_KEY is required when STORAGE_PROVIDER is 'r2'")
		}
		if cfg.R2BucketName == "" {
			return nil, fmt.Errorf("R2_BUCKET_NAME is required when STORAGE_PROVIDER is 'r2'")
		}
	} else if cfg.StorageProvider != "local" {
		return nil, fmt.Errorf("STORAGE_PROVIDER must be either 'local' or 'r2', got: %s", cfg.StorageProvider)
	}

	return cfg, nil
}

// CollectionLimits bundles the per-collection quotas for descriptor
// construction.
func (c *Config) CollectionLimits() domain.CollectionLimits {
	return domain.CollectionLimits{
		MaxHousePhotos: c.MaxPhotosPerHouse,
		MaxRoomPhotos:  c.MaxPhotosPerRoom,
		MaxFloorPlans:  c.MaxFloorplansPerHouse,
		MaxImageBytes:  c.MaxImageBytes,
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return fallback
}
