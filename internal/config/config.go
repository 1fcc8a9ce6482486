package config

import "time"

const (
	EnvDev   = "dev"
	EnvProd  = "prod"
	EnvLocal = "local"
)

var globalConfig *Config

func Global() *Config {
	return globalConfig
}

func SetGlobal(cfg *Config) {
	globalConfig = cfg
}

type Config struct {
	Env     string `env:"ENV" env-required:"true"`
	HTTP    HTTPConfig
	JWT     JWTConfig
	Storage StorageConfig
	WS      WSConfig
}

type HTTPConfig struct {
	Host            string        `env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port            string        `env:"HTTP_PORT" env-default:"3002"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"5s"`
}

type JWTConfig struct {
	Issuer string `env:"JWT_ISSUER" env-default:"tasksync"`
	// The signing key is shared with the credential-issuing subsystem
	// and must always be supplied externally.
	SigningKey string `env:"JWT_SIGNING_KEY" env-required:"true"`
}

type StorageConfig struct {
	DataDir      string `env:"STORAGE_DATA_DIR" env-default:"data"`
	DatabaseFile string `env:"STORAGE_DATABASE_FILE" env-default:"db.json"`
	UploadsDir   string `env:"STORAGE_UPLOADS_DIR" env-default:"uploads"`
}

type WSConfig struct {
	ReadBufferSize  int `env:"WS_READ_BUFFER_SIZE" env-default:"1024"`
	WriteBufferSize int `env:"WS_WRITE_BUFFER_SIZE" env-default:"1024"`
	SendBufferSize  int `env:"WS_SEND_BUFFER_SIZE" env-default:"32"`
}
