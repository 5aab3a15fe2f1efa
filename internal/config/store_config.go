package config

import (
	"os"
	"path/filepath"
)

const (
	storeKindVar       = "DEEPSIGHT_STORE"
	storePathVar       = "DEEPSIGHT_STORE_PATH"
	folderEnvVar       = "FOLDER"
	storePassphraseVar = "DEEPSIGHT_STORE_PASSPHRASE"
	redisAddrVar       = "REDIS_ADDR"
	redisPasswordVar   = "REDIS_PASSWORD"
	redisDBVar         = "REDIS_DB"
	redisKeyPrefixVar  = "REDIS_KEY_PREFIX"
)

const sessionFileName = "session.json"

// Store kinds accepted by GetStoreKind.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

type Store struct {
	file *File
}

var _ StoreConfig = Store{}

func (s Store) GetStoreKind() string {
	return pick(storeKindVar, s.file.store().Kind, StoreMemory)
}

// GetStorePath is the file used by the "file" store. DEEPSIGHT_STORE_PATH
// wins, then session.json inside FOLDER, then the config file.
func (s Store) GetStorePath() string {
	if os.Getenv(storePathVar) == "" {
		if folder := os.Getenv(folderEnvVar); folder != "" {
			return filepath.Join(folder, sessionFileName)
		}
	}
	return pick(storePathVar, s.file.store().Path, filepath.Join("./data", sessionFileName))
}

func (s Store) GetStorePassphrase() string {
	return pick(storePassphraseVar, s.file.store().Passphrase, "")
}

func (s Store) GetRedisAddr() string {
	return pick(redisAddrVar, s.file.redis().Addr, "localhost:6379")
}

func (s Store) GetRedisPassword() string {
	return pick(redisPasswordVar, s.file.redis().Password, "")
}

func (s Store) GetRedisDB() int {
	return pickInt(redisDBVar, s.file.redis().DB, 0)
}

func (s Store) GetRedisKeyPrefix() string {
	return pick(redisKeyPrefixVar, s.file.redis().KeyPrefix, "deepsight")
}
