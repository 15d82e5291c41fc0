package main

import (
	"github.com/joho/godotenv"

	"github.com/kochabx/dbguard/config"
	"github.com/kochabx/dbguard/log"
	"github.com/kochabx/dbguard/store/db"
)

// envFiles 依次尝试加载，已存在的环境变量不会被覆盖
var envFiles = []string{".env", "/etc/dbguard/.env"}

// Config 进程配置，来自可选的 config.yaml 与环境变量
type Config struct {
	HTTP HTTPConfig `json:"http"`
	DB   db.Config  `json:"db"`
	Log  log.Config `json:"log"`
}

type HTTPConfig struct {
	Addr    string `json:"addr" env:"HTTP_ADDR" default:":8080"`
	Metrics bool   `json:"metrics" env:"HTTP_METRICS" default:"true"`
}

// loadDotenv 返回成功加载的文件
func loadDotenv(paths ...string) []string {
	var loaded []string
	for _, path := range paths {
		if err := godotenv.Load(path); err == nil {
			loaded = append(loaded, path)
		}
	}
	return loaded
}

func loadConfig(paths ...string) (*Config, error) {
	cfg := new(Config)
	if err := config.New(cfg, config.WithFile("config.yaml", paths, true)).Load(); err != nil {
		return nil, err
	}
	if err := cfg.DB.Init(); err != nil {
		return nil, err
	}
	return cfg, nil
}
