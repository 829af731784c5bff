package application

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// StorageConfig selects and configures the media storage backend.
type StorageConfig struct {
	Backend       string `yaml:"backend"`
	LocalRoot     string `yaml:"local_root"`
	PublicBaseURL string `yaml:"public_base_url"`
	S3Region      string `yaml:"s3_region"`
	S3Bucket      string `yaml:"s3_bucket"`
	MaxUploadMB   int    `yaml:"max_upload_mb"`
}

// LoadStorageConfig loads storage config from yaml or env. REPORTS_CONFIG
// points at a yaml file; env values fill anything the file leaves unset.
func LoadStorageConfig() (StorageConfig, error) {
	cfg := StorageConfig{
		Backend:       getenvDefault("REPORTS_STORAGE_BACKEND", "local"),
		LocalRoot:     getenvDefault("REPORTS_STORAGE_ROOT", filepath.FromSlash("var/media/reports")),
		PublicBaseURL: getenvDefault("REPORTS_PUBLIC_BASE_URL", "http://localhost:8080"),
		S3Region:      os.Getenv("REPORTS_S3_REGION"),
		S3Bucket:      os.Getenv("REPORTS_S3_BUCKET"),
		MaxUploadMB:   5,
	}

	if path := os.Getenv("REPORTS_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	switch cfg.Backend {
	case "local":
		if cfg.LocalRoot == "" {
			return cfg, errors.New("reports: storage root required")
		}
	case "s3":
		if cfg.S3Bucket == "" {
			return cfg, errors.New("reports: s3 bucket required")
		}
	default:
		return cfg, errors.New("reports: unknown storage backend " + cfg.Backend)
	}
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 5
	}
	return cfg, nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}
