package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/selfcinema/server/internal/app"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
}

var (
	port = configVar[int]{
		envKey:       "SERVER_PORT",
		flagKey:      "port",
		defaultValue: 80,
	}
	host = configVar[string]{
		envKey:       "SERVER_HOST",
		flagKey:      "host",
		defaultValue: "0.0.0.0",
	}
	logLevel = configVar[string]{
		envKey:       "SERVER_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
	}
	presenceWindow = configVar[time.Duration]{
		envKey:       "SERVER_PRESENCE_WINDOW",
		flagKey:      "presence-window",
		defaultValue: 45 * time.Second,
	}
	messageRetention = configVar[time.Duration]{
		envKey:       "SERVER_MESSAGE_RETENTION",
		flagKey:      "message-retention",
		defaultValue: 10 * time.Minute,
	}
	messagesLimit = configVar[int]{
		envKey:       "SERVER_MESSAGES_LIMIT",
		flagKey:      "messages-limit",
		defaultValue: 200,
	}
	roomExpiration = configVar[time.Duration]{
		envKey:       "SERVER_ROOM_EXPIRATION",
		flagKey:      "room-expiration",
		defaultValue: 24 * 14 * time.Hour,
	}
	redisPort = configVar[int]{
		envKey:       "REDIS_PORT",
		flagKey:      "redis-port",
		defaultValue: 6379,
	}
	redisHost = configVar[string]{
		envKey:       "REDIS_HOST",
		flagKey:      "redis-host",
		defaultValue: "localhost",
	}
	redisPassword = configVar[string]{
		envKey:       "REDIS_PASSWORD",
		flagKey:      "redis-password",
		defaultValue: "",
	}
)

func loadAppConfig() *app.AppConfig {
	pflag.Int(port.flagKey, port.defaultValue, "Server port")
	pflag.String(host.flagKey, host.defaultValue, "Server host")
	pflag.String(logLevel.flagKey, logLevel.defaultValue, "Logging level")
	pflag.Duration(presenceWindow.flagKey, presenceWindow.defaultValue, "Sliding window for the online set")
	pflag.Duration(messageRetention.flagKey, messageRetention.defaultValue, "How long the message log is retained")
	pflag.Int(messagesLimit.flagKey, messagesLimit.defaultValue, "Maximum number of messages per page")
	pflag.Duration(roomExpiration.flagKey, roomExpiration.defaultValue, "Idle room expiration")
	pflag.Int(redisPort.flagKey, redisPort.defaultValue, "Redis port")
	pflag.String(redisHost.flagKey, redisHost.defaultValue, "Redis host")
	pflag.String(redisPassword.flagKey, redisPassword.defaultValue, "Redis password")
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	viper.BindEnv(port.flagKey, port.envKey)
	viper.BindEnv(host.flagKey, host.envKey)
	viper.BindEnv(logLevel.flagKey, logLevel.envKey)
	viper.BindEnv(presenceWindow.flagKey, presenceWindow.envKey)
	viper.BindEnv(messageRetention.flagKey, messageRetention.envKey)
	viper.BindEnv(messagesLimit.flagKey, messagesLimit.envKey)
	viper.BindEnv(roomExpiration.flagKey, roomExpiration.envKey)
	viper.BindEnv(redisPort.flagKey, redisPort.envKey)
	viper.BindEnv(redisHost.flagKey, redisHost.envKey)
	viper.BindEnv(redisPassword.flagKey, redisPassword.envKey)

	viper.SetDefault(port.flagKey, port.defaultValue)
	viper.SetDefault(host.flagKey, host.defaultValue)
	viper.SetDefault(logLevel.flagKey, logLevel.defaultValue)
	viper.SetDefault(presenceWindow.flagKey, presenceWindow.defaultValue)
	viper.SetDefault(messageRetention.flagKey, messageRetention.defaultValue)
	viper.SetDefault(messagesLimit.flagKey, messagesLimit.defaultValue)
	viper.SetDefault(roomExpiration.flagKey, roomExpiration.defaultValue)
	viper.SetDefault(redisPort.flagKey, redisPort.defaultValue)
	viper.SetDefault(redisHost.flagKey, redisHost.defaultValue)
	viper.SetDefault(redisPassword.flagKey, redisPassword.defaultValue)

	config := &app.AppConfig{
		Host:             viper.GetString(host.flagKey),
		Port:             viper.GetInt(port.flagKey),
		LogLevel:         viper.GetString(logLevel.flagKey),
		PresenceWindow:   viper.GetDuration(presenceWindow.flagKey),
		MessageRetention: viper.GetDuration(messageRetention.flagKey),
		MessagesLimit:    viper.GetInt(messagesLimit.flagKey),
		RoomExpiration:   viper.GetDuration(roomExpiration.flagKey),
		RedisPort:        viper.GetInt(redisPort.flagKey),
		RedisHost:        viper.GetString(redisHost.flagKey),
		RedisPassword:    viper.GetString(redisPassword.flagKey),
	}

	return config
}

func main() {
	ctx := context.Background()

	appConfig := loadAppConfig()

	jsonConfig, _ := json.MarshalIndent(appConfig, "", "  ")
	fmt.Printf("starting app with config: %s\n", jsonConfig)

	log.Fatal(app.Run(ctx, appConfig))
}
