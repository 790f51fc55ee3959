package main

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Config is llarpc's on-disk configuration, loaded from a TOML file
// named on the command line (default "llarpc.toml").
type Config struct {
	Router struct {
		ContactFile string `toml:"contact-file"`
		KeyFile     string `toml:"key-file"`
		Nickname    string `toml:"nickname"`
		NumPaths    int    `toml:"num-paths"`
	} `toml:"router"`
	Log struct {
		Level string `toml:"level"`
		File  string `toml:"file"`
	} `toml:"log"`
}

func defaultConfig() Config {
	var c Config
	c.Router.ContactFile = "self.signed"
	c.Router.KeyFile = "self.signed.key"
	c.Router.NumPaths = 4
	c.Log.Level = "info"
	return c
}

func loadConfig(path string) (Config, error) {
	c := defaultConfig()
	if _, err := toml.DecodeFile(path, &c); err != nil {
		return c, fmt.Errorf("load config %s: %w", path, err)
	}
	if c.Router.KeyFile == "" {
		c.Router.KeyFile = c.Router.ContactFile + ".key"
	}
	return c, nil
}
