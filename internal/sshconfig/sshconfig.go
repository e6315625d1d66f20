// Package sshconfig works out where a server's ssh_command actually
// connects, using the barman account's ~/.ssh/config.
package sshconfig

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/kevinburke/ssh_config"
	"github.com/rileyhilliard/barmanctl/internal/errors"
)

// Target is what an ssh_command asks for on its command line.
type Target struct {
	Alias        string // destination as written, without user or port
	User         string // from user@host, -l or -o User=
	Port         string // from -p, ssh:// URL or -o Port=
	IdentityFile string // from -i or -o IdentityFile=
}

// Endpoint is a Target after applying ssh_config.
type Endpoint struct {
	Alias        string `json:"alias"`
	HostName     string `json:"hostname"`
	User         string `json:"user,omitempty"`
	Port         string `json:"port"`
	IdentityFile string `json:"identity_file,omitempty"`
}

// String renders the endpoint as user@host:port.
func (e Endpoint) String() string {
	s := e.HostName
	if e.User != "" {
		s = e.User + "@" + s
	}
	if e.Port != "" && e.Port != "22" {
		s += ":" + e.Port
	}
	return s
}

// ssh flags that take an argument (from ssh(1) synopsis).
const flagsWithArg = "BbcDEeFIiJLlmOoPpQRSWw"

// ParseCommand extracts the destination from an ssh command line such as
// "ssh -p 2222 postgres@pg1". Only ssh itself is understood.
func ParseCommand(command string) (Target, error) {
	args, err := splitArgs(command)
	if err != nil {
		return Target{}, err
	}
	if len(args) == 0 || filepath.Base(args[0]) != "ssh" {
		return Target{}, errors.New(errors.ErrConfig,
			fmt.Sprintf("Can't parse ssh_command '%s'", command),
			"Only plain 'ssh [options] [user@]host' commands can be resolved.")
	}

	var t Target
	for i := 1; i < len(args); i++ {
		arg := args[i]

		if !strings.HasPrefix(arg, "-") || arg == "-" {
			return parseDestination(t, arg)
		}

		// Bundled boolean flags like -tt or -4C, possibly ending in one that takes a value
		for j := 1; j < len(arg); j++ {
			flag := arg[j]
			if !strings.ContainsRune(flagsWithArg, rune(flag)) {
				continue
			}
			value := arg[j+1:]
			if value == "" {
				i++
				if i >= len(args) {
					return Target{}, errors.New(errors.ErrConfig,
						fmt.Sprintf("ssh_command '%s' ends after -%c", command, flag),
						"Give the option a value.")
				}
				value = args[i]
			}
			applyFlag(&t, flag, value)
			break
		}
	}

	return Target{}, errors.New(errors.ErrConfig,
		fmt.Sprintf("ssh_command '%s' has no destination host", command),
		"Add the host to connect to, e.g. ssh postgres@pg1")
}

func applyFlag(t *Target, flag byte, value string) {
	switch flag {
	case 'p':
		t.Port = value
	case 'l':
		t.User = value
	case 'i':
		t.IdentityFile = value
	case 'o':
		key, val, ok := strings.Cut(value, "=")
		if !ok {
			key, val, ok = strings.Cut(value, " ")
		}
		if !ok {
			return
		}
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "port":
			t.Port = strings.TrimSpace(val)
		case "user":
			t.User = strings.TrimSpace(val)
		case "identityfile":
			t.IdentityFile = strings.TrimSpace(val)
		}
	}
}

func parseDestination(t Target, dest string) (Target, error) {
	if strings.HasPrefix(dest, "ssh://") {
		u, err := url.Parse(dest)
		if err != nil || u.Hostname() == "" {
			return Target{}, errors.New(errors.ErrConfig,
				fmt.Sprintf("Invalid ssh URL '%s'", dest),
				"Use ssh://user@host:port")
		}
		if u.User != nil && u.User.Username() != "" {
			t.User = u.User.Username()
		}
		if u.Port() != "" {
			t.Port = u.Port()
		}
		t.Alias = u.Hostname()
		return t, nil
	}

	if user, host, ok := strings.Cut(dest, "@"); ok {
		if t.User == "" {
			t.User = user
		}
		dest = host
	}
	if dest == "" {
		return Target{}, errors.New(errors.ErrConfig,
			"ssh_command destination has no host",
			"Add the host to connect to, e.g. ssh postgres@pg1")
	}
	t.Alias = dest
	return t, nil
}

// splitArgs splits a command line on whitespace, honouring single and
// double quotes.
func splitArgs(s string) ([]string, error) {
	var args []string
	var cur strings.Builder
	inArg := false
	var quote rune

	for _, r := range s {
		switch {
		case quote == '\'':
			if r == '\'' {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case quote == '"':
			if r == '"' {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inArg = true
		case r == ' ' || r == '\t' || r == '\n':
			if inArg {
				args = append(args, cur.String())
				cur.Reset()
				inArg = false
			}
		default:
			cur.WriteRune(r)
			inArg = true
		}
	}

	if quote != 0 {
		return nil, errors.New(errors.ErrConfig,
			fmt.Sprintf("Unterminated quote in '%s'", s),
			"Close the quote in ssh_command.")
	}
	if inArg {
		args = append(args, cur.String())
	}
	return args, nil
}

// Resolver applies one ssh_config file to targets.
type Resolver struct {
	cfg  *ssh_config.Config
	home string
}

// NewResolver loads configPath. A missing file resolves everything to the
// command-line values. home expands ~ in IdentityFile.
func NewResolver(configPath, home string) (*Resolver, error) {
	content, err := readConfig(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &Resolver{home: home}, nil
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't read SSH config "+configPath,
			"Check the file is readable.")
	}

	cfg, err := ssh_config.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't parse SSH config "+configPath,
			"Run 'ssh -G <host>' as the barman user to see what ssh makes of it.")
	}
	return &Resolver{cfg: cfg, home: home}, nil
}

// Resolve fills in HostName, User, Port and IdentityFile. Values on the
// command line win over ssh_config, as with ssh itself.
func (r *Resolver) Resolve(t Target) Endpoint {
	e := Endpoint{
		Alias:        t.Alias,
		HostName:     t.Alias,
		User:         t.User,
		Port:         t.Port,
		IdentityFile: t.IdentityFile,
	}

	if r.cfg != nil {
		if hostname, _ := r.cfg.Get(t.Alias, "HostName"); hostname != "" {
			e.HostName = strings.ReplaceAll(hostname, "%h", t.Alias)
		}
		if e.User == "" {
			e.User, _ = r.cfg.Get(t.Alias, "User")
		}
		if e.Port == "" {
			e.Port, _ = r.cfg.Get(t.Alias, "Port")
		}
		if e.IdentityFile == "" {
			e.IdentityFile, _ = r.cfg.Get(t.Alias, "IdentityFile")
		}
	}

	if e.Port == "" {
		e.Port = "22"
	}
	e.IdentityFile = r.expand(e.IdentityFile)
	return e
}

// ResolveCommand parses an ssh_command and resolves it.
func (r *Resolver) ResolveCommand(command string) (Endpoint, error) {
	t, err := ParseCommand(command)
	if err != nil {
		return Endpoint{}, err
	}
	return r.Resolve(t), nil
}

// ConfigPath is the ssh client config of an account with the given home.
func ConfigPath(home string) string {
	return filepath.Join(home, ".ssh", "config")
}

func (r *Resolver) expand(path string) string {
	if strings.HasPrefix(path, "~/") && r.home != "" {
		return filepath.Join(r.home, path[2:])
	}
	return path
}

// readConfig reads the file up to its first Match block, which ssh_config
// can't decode.
func readConfig(configPath string) ([]byte, error) {
	content, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(string(content), "\n")
	var result []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		// Match directive check (case insensitive)
		if strings.HasPrefix(strings.ToLower(trimmed), "match ") {
			break
		}
		result = append(result, line)
	}

	return []byte(strings.Join(result, "\n")), nil
}
