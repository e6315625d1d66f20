// Package render turns a Config into the files barman reads.
package render

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"github.com/rileyhilliard/barmanctl/internal/config"
	"github.com/rileyhilliard/barmanctl/internal/errors"
	"golang.org/x/crypto/ssh"
)

// File is one rendered file and the ownership it should have on disk.
type File struct {
	Path    string      `json:"path"`
	Content string      `json:"content"`
	Mode    os.FileMode `json:"mode"`
	Owner   string      `json:"owner"`
	Group   string      `json:"group"`
}

// AuthorizedKeysPath is the barman account's authorized_keys under home.
func AuthorizedKeysPath(home string) string {
	return filepath.Join(home, ".ssh", "authorized_keys")
}

var funcMap = template.FuncMap{
	"compression": config.Compression,
	"inactive": func(active *bool) bool {
		return active != nil && !*active
	},
}

type serverData struct {
	Name   string
	Server config.Server
}

// All renders every managed config file, sorted by path. authorized_keys is
// not included; see AuthorizedKeys.
func All(cfg *config.Config) ([]File, error) {
	main, err := MainConf(cfg)
	if err != nil {
		return nil, err
	}
	logrotate, err := Logrotate(cfg)
	if err != nil {
		return nil, err
	}

	files := []File{main, logrotate}
	for _, name := range cfg.ServerNames() {
		f, err := ServerConf(cfg, name)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// MainConf renders the global [barman] section.
func MainConf(cfg *config.Config) (File, error) {
	content, err := execute("main", cfg.Barman)
	if err != nil {
		return File{}, err
	}
	return File{
		Path:    cfg.Barman.ConfFile,
		Content: content,
		Mode:    0640,
		Owner:   "root",
		Group:   cfg.Barman.Group,
	}, nil
}

// ServerConf renders <conf_dir>/<name>.conf for one configured server.
func ServerConf(cfg *config.Config, name string) (File, error) {
	srv, ok := cfg.Servers[name]
	if !ok {
		return File{}, errors.New(errors.ErrRender,
			fmt.Sprintf("No server named %s in the config", name),
			"Run 'barmanctl servers' to list configured servers.")
	}
	if err := config.ValidateServerName(name); err != nil {
		return File{}, err
	}

	content, err := execute("server", serverData{Name: name, Server: srv})
	if err != nil {
		return File{}, err
	}
	return File{
		Path:    ServerConfPath(cfg, name),
		Content: content,
		Mode:    0640,
		Owner:   "root",
		Group:   cfg.Barman.Group,
	}, nil
}

// ServerConfPath is where a server's fragment lives.
func ServerConfPath(cfg *config.Config, name string) string {
	return filepath.Join(cfg.Barman.ConfDir, name+".conf")
}

// Logrotate renders the log rotation stanza for barman's log file.
func Logrotate(cfg *config.Config) (File, error) {
	content, err := execute("logrotate", cfg.Barman)
	if err != nil {
		return File{}, err
	}
	return File{
		Path:    cfg.Barman.LogrotateFile,
		Content: content,
		Mode:    0644,
		Owner:   "root",
		Group:   "root",
	}, nil
}

// AuthorizedKeys renders the barman account's authorized_keys holding the
// configured peer key. ok is false when no peer key is configured.
func AuthorizedKeys(cfg *config.Config, existing string) (f File, ok bool, err error) {
	peer := strings.TrimSpace(cfg.Keys.AuthorizedPeerKey)
	if peer == "" {
		return File{}, false, nil
	}

	content, err := EnsureAuthorizedKey(existing, peer)
	if err != nil {
		return File{}, false, err
	}
	return File{
		Path:    AuthorizedKeysPath(cfg.Barman.Home),
		Content: content,
		Mode:    0600,
		Owner:   cfg.Barman.User,
		Group:   cfg.Barman.Group,
	}, true, nil
}

// EnsureAuthorizedKey returns existing with key appended unless an entry
// for the same key is already present. Comments and options are ignored
// when comparing.
func EnsureAuthorizedKey(existing, key string) (string, error) {
	want, _, _, _, err := ssh.ParseAuthorizedKey([]byte(key))
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrRender,
			"keys.authorized_peer_key is not a valid SSH public key",
			"Paste the peer's id_rsa.pub line, e.g. from 'barmanctl key postgres' on the database host.")
	}
	wantBytes := want.Marshal()

	for _, line := range strings.Split(existing, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		have, _, _, _, err := ssh.ParseAuthorizedKey([]byte(line))
		if err != nil {
			continue
		}
		if bytes.Equal(have.Marshal(), wantBytes) {
			return existing, nil
		}
	}

	out := existing
	if out != "" && !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	return out + strings.TrimSpace(key) + "\n", nil
}

func execute(name string, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", errors.WrapWithCode(err, errors.ErrRender,
			fmt.Sprintf("Failed to render %s template", name),
			"This shouldn't happen - please report this bug!")
	}
	return buf.String(), nil
}
