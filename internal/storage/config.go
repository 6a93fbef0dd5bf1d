package storage

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config описывает выбор бэкенда хранения и его параметры.
// Тип бэкенда фиксируется на этапе деплоя, движок про него не знает.
type Config struct {
	Type string `mapstructure:"Type"` // "local" или "s3"

	Local LocalConfig `mapstructure:"Local"`
	S3    S3Config    `mapstructure:"S3"`
}

type LocalConfig struct {
	UploadDir string `mapstructure:"UploadDir"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"Endpoint"`
	Region          string `mapstructure:"Region"`
	AccessKeyID     string `mapstructure:"AccessKeyID"`
	SecretAccessKey string `mapstructure:"SecretAccessKey"`
	Bucket          string `mapstructure:"Bucket"`
}

func NewConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Привязываем переменные окружения
	v.BindEnv("Type", "STORAGE_TYPE")
	v.BindEnv("Local.UploadDir", "STORAGE_LOCAL_DIR")
	v.BindEnv("S3.Endpoint", "S3_ENDPOINT")
	v.BindEnv("S3.Region", "S3_REGION")
	v.BindEnv("S3.AccessKeyID", "S3_ACCESS_KEY_ID")
	v.BindEnv("S3.SecretAccessKey", "S3_SECRET_ACCESS_KEY")
	v.BindEnv("S3.Bucket", "S3_BUCKET")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("Warning: using only environment variables: %v\n", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("cannot unmarshal storage config: %w", err)
	}

	// Значения по умолчанию
	if cfg.Type == "" {
		cfg.Type = "local"
	}
	if cfg.Local.UploadDir == "" {
		cfg.Local.UploadDir = "./uploads"
	}

	switch cfg.Type {
	case "local":
	case "s3":
		if cfg.S3.AccessKeyID == "" || cfg.S3.SecretAccessKey == "" || cfg.S3.Bucket == "" {
			return nil, fmt.Errorf("s3 storage requires AccessKeyID, SecretAccessKey and Bucket")
		}
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}

	return &cfg, nil
}
