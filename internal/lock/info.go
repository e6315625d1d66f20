package lock

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// LockInfo is written next to an account's lock file so a waiting
// process can say who it is waiting for.
type LockInfo struct {
	Account  string    `json:"account,omitempty"`
	User     string    `json:"user"`
	Hostname string    `json:"hostname"`
	PID      int       `json:"pid"`
	Started  time.Time `json:"started"`
}

// NewLockInfo describes this process provisioning account.
func NewLockInfo(account string) *LockInfo {
	info := &LockInfo{
		Account: account,
		User:    os.Getenv("USER"),
		PID:     os.Getpid(),
		Started: time.Now().UTC().Truncate(time.Second),
	}
	if info.User == "" {
		info.User = "unknown"
	}
	if host, err := os.Hostname(); err == nil {
		info.Hostname = host
	} else {
		info.Hostname = "unknown"
	}
	return info
}

// Marshal encodes the info as JSON.
func (i *LockInfo) Marshal() ([]byte, error) {
	return json.Marshal(i)
}

// ParseLockInfo decodes the contents of a .lock.info file.
func ParseLockInfo(data []byte) (*LockInfo, error) {
	info := &LockInfo{}
	if err := json.Unmarshal(data, info); err != nil {
		return nil, err
	}
	return info, nil
}

// String renders the holder as user@host (pid N, since T).
func (i *LockInfo) String() string {
	return fmt.Sprintf("%s@%s (pid %d, since %s)", i.User, i.Hostname, i.PID, i.Started.Format(time.RFC3339))
}
