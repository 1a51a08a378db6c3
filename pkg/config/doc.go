// Package config loads typed configuration structs from the environment.
//
// Each struct describes its variables with `env` tags understood by
// github.com/caarlos0/env. A .env file in the working directory is read once,
// before the first parse, so local development does not need exported shell
// variables:
//
//	type ServiceConfig struct {
//	    Addr string `env:"ADDR" envDefault:":8080"`
//	}
//
//	var cfg ServiceConfig
//	if err := config.Load(&cfg); err != nil {
//	    return err
//	}
//
// Load caches the parsed value per struct type, so every caller asking for
// the same config type observes the same instance.
package config
