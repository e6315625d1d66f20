package keys

import (
	"encoding/json"
	"fmt"
)

// Status classifies the outcome of a Provision call.
type Status int

const (
	// NotProvisioned means the account doesn't exist. Not an error.
	NotProvisioned Status = iota
	// Found means Key holds the account's public key.
	Found
	// Failed means provisioning was attempted or checked and went wrong.
	Failed
)

func (s Status) String() string {
	switch s {
	case NotProvisioned:
		return "not_provisioned"
	case Found:
		return "found"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// MarshalJSON encodes the status as its string form.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Result is the outcome of provisioning one account.
type Result struct {
	Account string
	Status  Status
	// Key is set only when Status is Found.
	Key string
	// Generated is true when this call ran ssh-keygen and it produced the key.
	Generated bool
	// Err is set only when Status is Failed.
	Err error
}

// Fact returns the key for Found and "" otherwise.
func (r Result) Fact() string {
	if r.Status != Found {
		return ""
	}
	return r.Key
}

func found(account, key string, generated bool) Result {
	return Result{Account: account, Status: Found, Key: key, Generated: generated}
}

func notProvisioned(account string) Result {
	return Result{Account: account, Status: NotProvisioned}
}

func failed(account string, err error) Result {
	return Result{Account: account, Status: Failed, Err: err}
}
