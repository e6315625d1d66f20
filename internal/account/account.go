// Package account resolves service account names to their home directories.
package account

import (
	"bufio"
	stderrors "errors"
	"fmt"
	"os/user"
	"strconv"
	"strings"

	"github.com/rileyhilliard/barmanctl/internal/errors"
	"github.com/spf13/afero"
)

// Account is a read-only view of one entry in an account database.
type Account struct {
	Name    string
	HomeDir string
	UID     int
	GID     int
}

// Lookup finds accounts by exact name. A missing account is reported as
// (Account{}, false, nil); the error is reserved for an unreadable database.
type Lookup interface {
	Find(name string) (Account, bool, error)
}

// System looks accounts up in the operating system account database.
type System struct{}

// Find implements Lookup.
func (System) Find(name string) (Account, bool, error) {
	u, err := user.Lookup(name)
	if err != nil {
		var unknown user.UnknownUserError
		if stderrors.As(err, &unknown) {
			return Account{}, false, nil
		}
		return Account{}, false, errors.WrapWithCode(err, errors.ErrKey,
			fmt.Sprintf("Couldn't look up account %s", name),
			"Check that the system account database is readable.")
	}

	uid, _ := strconv.Atoi(u.Uid)
	gid, _ := strconv.Atoi(u.Gid)
	return Account{Name: u.Username, HomeDir: u.HomeDir, UID: uid, GID: gid}, true, nil
}

// PasswdFile scans a passwd(5) formatted file for an exact name match.
type PasswdFile struct {
	Fs   afero.Fs
	Path string
}

// NewPasswdFile returns a PasswdFile reading path from the real filesystem.
func NewPasswdFile(path string) *PasswdFile {
	return &PasswdFile{Fs: afero.NewOsFs(), Path: path}
}

// Find implements Lookup. Comment, blank and malformed lines are skipped.
func (p *PasswdFile) Find(name string) (Account, bool, error) {
	f, err := p.Fs.Open(p.Path)
	if err != nil {
		return Account{}, false, errors.WrapWithCode(err, errors.ErrKey,
			"Couldn't open account database "+p.Path,
			"Check keys.passwd_file points at a readable passwd file.")
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		acct, ok := parsePasswdLine(scanner.Text())
		if ok && acct.Name == name {
			return acct, true, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return Account{}, false, errors.WrapWithCode(err, errors.ErrKey,
			"Couldn't read account database "+p.Path,
			"Check the file isn't truncated or binary.")
	}

	return Account{}, false, nil
}

// parsePasswdLine parses name:passwd:uid:gid:gecos:home:shell.
func parsePasswdLine(line string) (Account, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return Account{}, false
	}

	fields := strings.Split(line, ":")
	if len(fields) != 7 || fields[0] == "" {
		return Account{}, false
	}

	uid, err := strconv.Atoi(fields[2])
	if err != nil {
		return Account{}, false
	}
	gid, err := strconv.Atoi(fields[3])
	if err != nil {
		return Account{}, false
	}

	return Account{Name: fields[0], HomeDir: fields[5], UID: uid, GID: gid}, true
}

// Static is a fixed set of accounts keyed by name.
type Static map[string]Account

// Find implements Lookup.
func (s Static) Find(name string) (Account, bool, error) {
	acct, ok := s[name]
	if !ok {
		return Account{}, false, nil
	}
	if acct.Name == "" {
		acct.Name = name
	}
	return acct, true, nil
}

// FromConfig picks the passwd file lookup when a path is set, else the system database.
func FromConfig(passwdFile string) Lookup {
	if passwdFile != "" {
		return NewPasswdFile(passwdFile)
	}
	return System{}
}
