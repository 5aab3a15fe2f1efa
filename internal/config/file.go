package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const configFileVar = "DEEPSIGHT_CONFIG"

type apiSection struct {
	URL string `yaml:"url"`
}

type sessionSection struct {
	RevalidateInterval string `yaml:"revalidate_interval"`
	RequestTimeout     string `yaml:"request_timeout"`
}

type redisSection struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

type storeSection struct {
	Kind       string       `yaml:"kind"`
	Path       string       `yaml:"path"`
	Passphrase string       `yaml:"passphrase"`
	Redis      redisSection `yaml:"redis"`
}

// File is the optional YAML configuration file. Every field is optional;
// environment variables take precedence over anything set here.
type File struct {
	API      apiSection     `yaml:"api"`
	LogLevel string         `yaml:"log_level"`
	Session  sessionSection `yaml:"session"`
	Store    storeSection   `yaml:"store"`
}

func (f *File) api() apiSection {
	if f == nil {
		return apiSection{}
	}
	return f.API
}

func (f *File) logLevel() string {
	if f == nil {
		return ""
	}
	return f.LogLevel
}

func (f *File) session() sessionSection {
	if f == nil {
		return sessionSection{}
	}
	return f.Session
}

func (f *File) store() storeSection {
	if f == nil {
		return storeSection{}
	}
	return f.Store
}

func (f *File) redis() redisSection {
	return f.store().Redis
}

// LoadFile reads a YAML config file.
func LoadFile(filename string) (*File, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	f := &File{}
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	return f, nil
}

// Load reads an optional .env file from the working directory, then the YAML
// file named by DEEPSIGHT_CONFIG if set.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("godotenv.Load: %w", err)
	}

	path := os.Getenv(configFileVar)
	if path == "" {
		return New(), nil
	}

	f, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return NewWithFile(f), nil
}
