package config

import (
	"github.com/gotify/configor"
)

var Conf *Configuration

type Configuration struct {
	App struct {
		ListenAddr string `default:"" env:"APP_HOST"`
		Port       int    `default:"8080"  env:"APP_PORT"`
	}
	Database struct {
		Path          string `default:"./data/worklog.db" env:"DB_PATH"`
		SnapshotEvery int    `default:"50" env:"DB_SNAPSHOT_EVERY"`
	}
	Log struct {
		Level  string `default:"info" env:"LOG_LEVEL"`
		Format string `default:"text" env:"LOG_FORMAT"`
	}
}

func configFiles() []string {
	return []string{"config.yml"}
}

func InitConfig() {
	if Conf != nil {
		return
	}
	conf := new(Configuration)
	err := configor.New(&configor.Config{}).Load(conf, configFiles()...)
	if err != nil {
		panic(err)
	}
	Conf = conf
}
