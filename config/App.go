package config

import (
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/viper"
)

var Redis *redis.Client
var ServiceName string = "points-lotto"
var Timezone string = "America/New_York"

func InitializeConfig() {
	timezone := viper.GetString("timezone")
	if timezone != "" {
		Timezone = timezone
	}
	Redis = redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", viper.GetString("redis.host"), viper.GetString("redis.port")),
		Password: viper.GetString("redis.password"),
		DB:       viper.GetInt("redis.database"),
	})
}
