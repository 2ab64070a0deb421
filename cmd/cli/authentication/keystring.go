package authentication

// keystring.go keeps the uplink key in the OS keyring so it never sits in shell history or .env files.
import (
	"encoding/json"
	"errors"
	"time"

	"github.com/zalando/go-keyring"
)

const (
	serviceName = "uplinkhub-cli"
	uplinkKey   = "uplink_key"
)

// ErrNoStoredKey is returned when nothing was saved with StoreUplinkKey
var ErrNoStoredKey = errors.New("no uplink key stored")

type StoredKey struct {
	Key     string `json:"key"`
	URL     string `json:"url,omitempty"` // endpoint the key was saved for, informational
	SavedAt int64  `json:"saved_at"`
}

func StoreUplinkKey(key, url string) error {
	data, err := json.Marshal(&StoredKey{Key: key, URL: url, SavedAt: time.Now().Unix()})
	if err != nil {
		return err
	}
	return keyring.Set(serviceName, uplinkKey, string(data))
}

func GetUplinkKey() (*StoredKey, error) {
	value, err := keyring.Get(serviceName, uplinkKey)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, ErrNoStoredKey
	}
	if err != nil {
		return nil, err
	}

	var stored StoredKey
	if err := json.Unmarshal([]byte(value), &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

func DeleteUplinkKey() error {
	err := keyring.Delete(serviceName, uplinkKey)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}
