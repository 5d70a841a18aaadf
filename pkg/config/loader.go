package config

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvInfo 集合服務設定 from .env
type EnvInfo struct {
	// service name, also the YAML file name
	Gateway      string
	Converter    string
	Notification string
	Auth         string

	// service yaml dir
	GatewayYAMLPath      string
	ConverterYAMLPath    string
	NotificationYAMLPath string
	AuthYAMLPath         string

	// service log dir
	GatewayLogPath      string
	ConverterLogPath    string
	NotificationLogPath string
	AuthLogPath         string
}

// EnvConfig is read once from the nearest .env and the process environment
var (
	EnvConfig = initEnv()
	envConfig EnvInfo
	once      sync.Once
	env       string
)

func initEnv() EnvInfo {
	once.Do(func() {
		path, err := GetPath(".env", 5)
		if err != nil {
			log.Printf("Warning: Could not get .env path: %v", err)
		} else if err := godotenv.Load(path); err != nil {
			log.Printf("Warning: Could not load .env file: %v", err)
		}

		env = os.Getenv("ENV")

		envConfig = EnvInfo{
			Gateway:      getenv("GATEWAY_SERVICE", "gateway"),
			Converter:    getenv("CONVERTER_SERVICE", "converter"),
			Notification: getenv("NOTIFICATION_SERVICE", "notification"),
			Auth:         getenv("AUTH_SERVICE", "auth"),

			GatewayYAMLPath:      getenv("GATEWAY_SERVICE_YAML", "./configs"),
			ConverterYAMLPath:    getenv("CONVERTER_SERVICE_YAML", "./configs"),
			NotificationYAMLPath: getenv("NOTIFICATION_SERVICE_YAML", "./configs"),
			AuthYAMLPath:         getenv("AUTH_SERVICE_YAML", "./configs"),

			GatewayLogPath:      getenv("GATEWAY_SERVICE_LOG", "./logs/gateway"),
			ConverterLogPath:    getenv("CONVERTER_SERVICE_LOG", "./logs/converter"),
			NotificationLogPath: getenv("NOTIFICATION_SERVICE_LOG", "./logs/notification"),
			AuthLogPath:         getenv("AUTH_SERVICE_LOG", "./logs/auth"),
		}
	})

	return envConfig
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// IsProduction check run env
func IsProduction() bool {
	return env == "production"
}

// IsLocal check run env
func IsLocal() bool {
	return env == "local"
}

// LoadConfig reads <configPath>/<serviceName>.yaml, expands ${VAR} placeholders
// from the environment and decodes the result into T.
func LoadConfig[T any](serviceName string, configPath string) (T, error) {
	var cfg T

	v := viper.New()
	v.SetConfigName(serviceName)
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return cfg, fmt.Errorf("load config file: %w", err)
	}

	rawConfig, err := os.ReadFile(v.ConfigFileUsed())
	if err != nil {
		return cfg, fmt.Errorf("read raw config file: %w", err)
	}

	// 替換 ${} 占位符為環境變數的值
	expandedConfig := os.ExpandEnv(string(rawConfig))
	if err := v.ReadConfig(bytes.NewBufferString(expandedConfig)); err != nil {
		return cfg, fmt.Errorf("read expanded config: %w", err)
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// MustLoadConfig is LoadConfig for main packages, it exits on error
func MustLoadConfig[T any](serviceName string, configPath string) T {
	cfg, err := LoadConfig[T](serviceName, configPath)
	if err != nil {
		log.Fatalf("Error loading %s config: %v", serviceName, err)
	}
	return cfg
}

// GetPath use fileName loop maxCount find file path
func GetPath(fileName string, maxCount int) (string, error) {
	path := "./" + fileName

	for i := 0; i < maxCount; i++ {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		path = "../" + path
	}
	return "", errors.New(fileName + " can't find path")
}
