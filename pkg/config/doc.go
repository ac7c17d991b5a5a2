// Package config loads configuration structs from environment variables and
// optional .env files.
//
// Configuration is declared with `env` struct tags (github.com/caarlos0/env)
// and loaded through Load or MustLoad. LoadEnv reads additional .env files
// (github.com/joho/godotenv) with later files taking precedence.
//
//	var cfg guard.Config
//	config.MustLoad(&cfg)
package config
