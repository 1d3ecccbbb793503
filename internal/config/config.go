package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Database   DatabaseConfig   `yaml:"database"`
	Photos     PhotosConfig     `yaml:"photos"`
	MinIO      MinIOConfig      `yaml:"minio"`
	NATS       NATSConfig       `yaml:"nats"`
	Vision     VisionConfig     `yaml:"vision"`
	Matching   MatchingConfig   `yaml:"matching"`
	Attendance AttendanceConfig `yaml:"attendance"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

// StorageConfig selects where employee records and attendance logs live.
type StorageConfig struct {
	Backend string `yaml:"backend"` // file | postgres
	DataDir string `yaml:"data_dir"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// PhotosConfig selects where canonical registration photos are kept.
type PhotosConfig struct {
	Backend string `yaml:"backend"` // disk | minio
	Dir     string `yaml:"dir"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// NATSConfig enables the attendance event stream. An empty URL disables it.
type NATSConfig struct {
	URL string `yaml:"url"`
}

type VisionConfig struct {
	ModelsDir          string        `yaml:"models_dir"`
	ONNXLibPath        string        `yaml:"onnx_lib_path"`
	Detector           string        `yaml:"detector"` // retinaface | haar
	Encoder            string        `yaml:"encoder"`  // geometric | arcface
	CascadePath        string        `yaml:"cascade_path"`
	HaarMinSize        int           `yaml:"haar_min_size"`
	DetectionThreshold float64       `yaml:"detection_threshold"`
	SessionPoolSize    int           `yaml:"session_pool_size"`
	WorkerCount        int           `yaml:"worker_count"`
	ImageTimeout       time.Duration `yaml:"image_timeout"`
	GeometricSize      int           `yaml:"geometric_size"`
	GeometricDim       int           `yaml:"geometric_dim"`
}

type MatchingConfig struct {
	EuclideanTolerance float64 `yaml:"euclidean_tolerance"`
	CosineThreshold    float64 `yaml:"cosine_threshold"`
}

type AttendanceConfig struct {
	Timezone       string `yaml:"timezone"`
	TempDir        string `yaml:"temp_dir"`
	MaxImageBytes  int64  `yaml:"max_image_bytes"`
	MaxImagePixels int64  `yaml:"max_image_pixels"`
}

// Location resolves Timezone, defaulting to the local zone.
func (a AttendanceConfig) Location() (*time.Location, error) {
	if a.Timezone == "" || a.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", a.Timezone, err)
	}
	return loc, nil
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from YAML file and applies environment variable overrides.
// An empty path skips the file and uses defaults plus environment.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "file"
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "data"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 20
	}
	if cfg.Photos.Backend == "" {
		cfg.Photos.Backend = "disk"
	}
	if cfg.Photos.Dir == "" {
		cfg.Photos.Dir = "employee_photos"
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = "facepass"
	}
	if cfg.Vision.ModelsDir == "" {
		cfg.Vision.ModelsDir = "models"
	}
	if cfg.Vision.Detector == "" {
		cfg.Vision.Detector = "retinaface"
	}
	if cfg.Vision.Encoder == "" {
		cfg.Vision.Encoder = "geometric"
	}
	if cfg.Vision.CascadePath == "" {
		cfg.Vision.CascadePath = "models/haarcascade_frontalface_default.xml"
	}
	if cfg.Vision.DetectionThreshold == 0 {
		cfg.Vision.DetectionThreshold = 0.5
	}
	if cfg.Vision.SessionPoolSize == 0 {
		cfg.Vision.SessionPoolSize = 2
	}
	if cfg.Vision.WorkerCount == 0 {
		cfg.Vision.WorkerCount = 4
	}
	if cfg.Vision.ImageTimeout == 0 {
		cfg.Vision.ImageTimeout = 10 * time.Second
	}
	if cfg.Vision.GeometricSize == 0 {
		cfg.Vision.GeometricSize = 128
	}
	if cfg.Vision.GeometricDim == 0 {
		cfg.Vision.GeometricDim = 128
	}
	if cfg.Matching.EuclideanTolerance == 0 {
		cfg.Matching.EuclideanTolerance = 0.6
	}
	if cfg.Matching.CosineThreshold == 0 {
		cfg.Matching.CosineThreshold = 0.4
	}
	if cfg.Attendance.MaxImageBytes == 0 {
		cfg.Attendance.MaxImageBytes = 10 << 20
	}
	if cfg.Attendance.MaxImagePixels == 0 {
		cfg.Attendance.MaxImagePixels = 50_000_000
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// Validate rejects unknown backends and out-of-range numbers.
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Backend {
	case "file", "postgres":
	default:
		errs = append(errs, fmt.Errorf("storage.backend: unknown backend %q", c.Storage.Backend))
	}
	switch c.Photos.Backend {
	case "disk":
	case "minio":
		if c.MinIO.Endpoint == "" {
			errs = append(errs, errors.New("minio.endpoint: required when photos.backend is minio"))
		}
	default:
		errs = append(errs, fmt.Errorf("photos.backend: unknown backend %q", c.Photos.Backend))
	}
	switch c.Vision.Detector {
	case "retinaface", "haar":
	default:
		errs = append(errs, fmt.Errorf("vision.detector: unknown detector %q", c.Vision.Detector))
	}
	switch c.Vision.Encoder {
	case "geometric", "arcface":
	default:
		errs = append(errs, fmt.Errorf("vision.encoder: unknown encoder %q", c.Vision.Encoder))
	}
	if c.Vision.WorkerCount < 1 {
		errs = append(errs, fmt.Errorf("vision.worker_count: must be positive, got %d", c.Vision.WorkerCount))
	}
	if c.Vision.ImageTimeout < 0 {
		errs = append(errs, fmt.Errorf("vision.image_timeout: must not be negative, got %s", c.Vision.ImageTimeout))
	}
	if c.Matching.EuclideanTolerance <= 0 {
		errs = append(errs, fmt.Errorf("matching.euclidean_tolerance: must be positive, got %v", c.Matching.EuclideanTolerance))
	}
	if c.Matching.CosineThreshold < -1 || c.Matching.CosineThreshold >= 1 {
		errs = append(errs, fmt.Errorf("matching.cosine_threshold: must be in [-1, 1), got %v", c.Matching.CosineThreshold))
	}
	if _, err := c.Attendance.Location(); err != nil {
		errs = append(errs, fmt.Errorf("attendance.timezone: %w", err))
	}

	return errors.Join(errs...)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FP_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("FP_STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv("FP_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("FP_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("FP_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("FP_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("FP_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("FP_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("FP_PHOTOS_BACKEND"); v != "" {
		cfg.Photos.Backend = v
	}
	if v := os.Getenv("FP_PHOTOS_DIR"); v != "" {
		cfg.Photos.Dir = v
	}
	if v := os.Getenv("FP_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("FP_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("FP_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("FP_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("FP_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("FP_MODELS_DIR"); v != "" {
		cfg.Vision.ModelsDir = v
	}
	if v := os.Getenv("FP_ONNX_LIB_PATH"); v != "" {
		cfg.Vision.ONNXLibPath = v
	}
	if v := os.Getenv("FP_DETECTOR"); v != "" {
		cfg.Vision.Detector = v
	}
	if v := os.Getenv("FP_ENCODER"); v != "" {
		cfg.Vision.Encoder = v
	}
	if v := os.Getenv("FP_VISION_WORKER_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Vision.WorkerCount = n
		}
	}
	if v := os.Getenv("FP_IMAGE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Vision.ImageTimeout = d
		}
	}
	if v := os.Getenv("FP_EUCLIDEAN_TOLERANCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Matching.EuclideanTolerance = f
		}
	}
	if v := os.Getenv("FP_COSINE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Matching.CosineThreshold = f
		}
	}
	if v := os.Getenv("FP_MAX_IMAGE_PIXELS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Attendance.MaxImagePixels = n
		}
	}
	if v := os.Getenv("FP_TIMEZONE"); v != "" {
		cfg.Attendance.Timezone = v
	}
	if v := os.Getenv("FP_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
