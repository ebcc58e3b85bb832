package main

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Dataset struct {
		FileName   string `yaml:"file_name"`
		FilesRegex string `yaml:"files_regex"`
	} `yaml:"dataset"`

	Axes struct {
		X string `yaml:"x"`
		Y string `yaml:"y"`
		Z string `yaml:"z"`
		T string `yaml:"t"`
	} `yaml:"axes"`

	Read struct {
		Step   int64    `yaml:"step"`
		Arrays []string `yaml:"arrays"`
		Extent []int64  `yaml:"extent"`
	} `yaml:"read"`

	Threads int `yaml:"threads"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func defaultConfig() *Config {
	cfg := &Config{Threads: -1}
	cfg.Axes.X = "lon"
	cfg.Axes.Y = "lat"
	cfg.Axes.T = "time"
	return cfg
}
