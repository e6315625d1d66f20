package apply

import (
	"fmt"
	"os/user"
	"strconv"

	"github.com/rileyhilliard/barmanctl/internal/errors"
)

// OwnerLookup maps a user and group name to numeric ids for chown.
type OwnerLookup func(owner, group string) (uid, gid int, err error)

// SystemOwner resolves owners through the system account database.
func SystemOwner(owner, group string) (int, int, error) {
	u, err := user.Lookup(owner)
	if err != nil {
		return 0, 0, errors.WrapWithCode(err, errors.ErrFile,
			fmt.Sprintf("Unknown user '%s'", owner),
			"Install the barman package first, or fix barman.user.")
	}
	g, err := user.LookupGroup(group)
	if err != nil {
		return 0, 0, errors.WrapWithCode(err, errors.ErrFile,
			fmt.Sprintf("Unknown group '%s'", group),
			"Install the barman package first, or fix barman.group.")
	}

	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return 0, 0, errors.WrapWithCode(err, errors.ErrFile, "Non-numeric uid for "+owner, "")
	}
	gid, err := strconv.Atoi(g.Gid)
	if err != nil {
		return 0, 0, errors.WrapWithCode(err, errors.ErrFile, "Non-numeric gid for "+group, "")
	}
	return uid, gid, nil
}

// StaticOwner returns a lookup that gives every file the same ids.
func StaticOwner(uid, gid int) OwnerLookup {
	return func(string, string) (int, int, error) {
		return uid, gid, nil
	}
}
