package keys

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rileyhilliard/barmanctl/internal/account"
	"github.com/rileyhilliard/barmanctl/internal/errors"
	"github.com/rileyhilliard/barmanctl/internal/exec"
	exectesting "github.com/rileyhilliard/barmanctl/internal/exec/testing"
	"github.com/rileyhilliard/barmanctl/internal/lock"
	locktesting "github.com/rileyhilliard/barmanctl/internal/lock/testing"
	"github.com/rileyhilliard/barmanctl/internal/logger"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	barmanHome = "/var/lib/barman"
	barmanPub  = barmanHome + "/.ssh/id_rsa.pub"
	barmanPriv = barmanHome + "/.ssh/id_rsa"
	testKey    = "ssh-rsa AAAAB3NzaC1yc2EAAAADAQABAAABAQtest barman@backup"
)

type fixture struct {
	fs     afero.Fs
	runner *exectesting.FakeRunner
	log    *logger.BufferLogger
	p      *Provisioner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll(barmanHome, 0750))
	require.NoError(t, fs.MkdirAll("/var/lib/postgresql", 0750))

	f := &fixture{
		fs:     fs,
		runner: exectesting.NewFakeRunner(),
		log:    logger.NewBufferLogger(),
	}
	f.p = &Provisioner{
		Accounts: account.Static{
			"barman":   {HomeDir: barmanHome},
			"postgres": {HomeDir: "/var/lib/postgresql"},
			"nohome":   {HomeDir: "/home/nohome"},
			"relative": {HomeDir: "home/rel"},
		},
		Runner:  f.runner,
		Fs:      fs,
		KeyType: "rsa",
		Timeout: time.Second,
		Logger:  f.log,
	}
	return f
}

// keygen makes the fake runner behave like a successful ssh-keygen.
func (f *fixture) keygen(content string) {
	f.runner.SetRunAs(func(ctx context.Context, acct, command string) (int, error) {
		home := map[string]string{"barman": barmanHome, "postgres": "/var/lib/postgresql"}[acct]
		_ = afero.WriteFile(f.fs, filepath.Join(home, ".ssh", "id_rsa"), []byte("PRIVATE"), 0600)
		_ = afero.WriteFile(f.fs, filepath.Join(home, ".ssh", "id_rsa.pub"), []byte(content), 0644)
		return 0, nil
	})
}

func TestProvision_FastPathStripsNewline(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, afero.WriteFile(f.fs, barmanPub, []byte("ssh-rsa AAAAB3...test\n"), 0644))

	res := f.p.Provision(context.Background(), "barman")

	assert.Equal(t, Found, res.Status)
	assert.Equal(t, "ssh-rsa AAAAB3...test", res.Key)
	assert.False(t, res.Generated)
	assert.NoError(t, res.Err)
	assert.Equal(t, 0, f.runner.RunAsCount(), "fast path must not spawn a process")
}

func TestProvision_Trimming(t *testing.T) {
	for _, content := range []string{
		testKey + "\n",
		testKey + "\r\n",
		testKey + "  \n\n",
		"\t" + testKey + " ",
	} {
		f := newFixture(t)
		require.NoError(t, afero.WriteFile(f.fs, barmanPub, []byte(content), 0644))

		assert.Equal(t, testKey, f.p.Fact(context.Background(), "barman"), "%q", content)
	}
}

func TestProvision_UnknownAccount(t *testing.T) {
	f := newFixture(t)

	res := f.p.Provision(context.Background(), "nobody")

	assert.Equal(t, NotProvisioned, res.Status)
	assert.Empty(t, res.Fact())
	assert.NoError(t, res.Err)
	assert.Equal(t, 0, f.runner.RunAsCount())
}

func TestProvision_GenerationSuccess(t *testing.T) {
	f := newFixture(t)
	f.keygen(testKey + "\n")

	res := f.p.Provision(context.Background(), "barman")

	require.Equal(t, Found, res.Status, "err: %v", res.Err)
	assert.Equal(t, testKey, res.Key)
	assert.True(t, res.Generated)

	require.Len(t, f.runner.RunAsCalls, 1)
	call := f.runner.RunAsCalls[0]
	assert.Equal(t, "barman", call.Account)
	assert.Equal(t, GenerateCommand("rsa", barmanPriv), call.Command)
	assert.Contains(t, call.Command, "ssh-keygen -t 'rsa' -N '' -q -f '/var/lib/barman/.ssh/id_rsa'")
}

func TestProvision_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.keygen(testKey + "\n")

	first := f.p.Fact(context.Background(), "barman")
	second := f.p.Fact(context.Background(), "barman")

	assert.Equal(t, testKey, first)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.runner.RunAsCount(), "at most one generation across both calls")
}

func TestProvision_GenerationFailure(t *testing.T) {
	f := newFixture(t)
	f.runner.SetRunAs(func(ctx context.Context, acct, command string) (int, error) {
		return 1, nil // ssh-keygen ran but wrote nothing
	})

	res := f.p.Provision(context.Background(), "barman")

	assert.Equal(t, Failed, res.Status)
	assert.Empty(t, res.Fact())
	require.Error(t, res.Err)
	assert.True(t, errors.IsCode(res.Err, errors.ErrKey))
	assert.Contains(t, res.Err.Error(), "exit 1")
	assert.True(t, f.log.HasLevel("warn"), "failed generation must log a warning")
	assert.Equal(t, 1, f.runner.RunAsCount(), "at most one generation attempt per call")
}

func TestProvision_NonZeroExitButKeyWritten(t *testing.T) {
	f := newFixture(t)
	f.runner.SetRunAs(func(ctx context.Context, acct, command string) (int, error) {
		_ = afero.WriteFile(f.fs, barmanPub, []byte(testKey), 0644)
		return 1, nil
	})

	res := f.p.Provision(context.Background(), "barman")

	assert.Equal(t, Found, res.Status)
	assert.Equal(t, testKey, res.Key)
}

func TestProvision_RunnerError(t *testing.T) {
	f := newFixture(t)
	f.runner.SetRunAs(func(ctx context.Context, acct, command string) (int, error) {
		return -1, stderrors.New("su: Authentication failure")
	})

	res := f.p.Provision(context.Background(), "barman")

	assert.Equal(t, Failed, res.Status)
	assert.Contains(t, res.Err.Error(), "Couldn't run ssh-keygen as barman")
	assert.True(t, f.log.HasLevel("warn"))
}

func TestProvision_Timeout(t *testing.T) {
	f := newFixture(t)
	f.p.Timeout = 50 * time.Millisecond

	var sawDeadline bool
	f.runner.SetRunAs(func(ctx context.Context, acct, command string) (int, error) {
		_, sawDeadline = ctx.Deadline()
		<-ctx.Done()
		return -1, errors.WrapWithCode(exec.ErrTimeout, errors.ErrExec, "Command timed out", "")
	})

	start := time.Now()
	res := f.p.Provision(context.Background(), "barman")

	assert.True(t, sawDeadline, "generation must run under a deadline")
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, Failed, res.Status)
	assert.True(t, stderrors.Is(res.Err, exec.ErrTimeout))
	assert.Contains(t, res.Err.Error(), "timed out")
	assert.True(t, f.log.HasLevel("warn"))
}

func TestProvision_PrivateWithoutPublic(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, afero.WriteFile(f.fs, barmanPriv, []byte("PRIVATE"), 0600))

	res := f.p.Provision(context.Background(), "barman")

	assert.Equal(t, Failed, res.Status)
	assert.Contains(t, res.Err.Error(), "has a private key but no id_rsa.pub")
	assert.Equal(t, 0, f.runner.RunAsCount(), "an existing private key is never overwritten")

	data, err := afero.ReadFile(f.fs, barmanPriv)
	require.NoError(t, err)
	assert.Equal(t, "PRIVATE", string(data))
}

func TestProvision_EmptyPublicKey(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, afero.WriteFile(f.fs, barmanPub, []byte("\n"), 0644))

	res := f.p.Provision(context.Background(), "barman")

	assert.Equal(t, Failed, res.Status)
	assert.Contains(t, res.Err.Error(), "is empty")
	assert.Equal(t, 0, f.runner.RunAsCount())
}

func TestProvision_UnreadablePublicKey(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, afero.WriteFile(f.fs, barmanPub, []byte(testKey), 0644))
	f.p.Fs = &unreadableFs{Fs: f.fs, path: barmanPub}

	res := f.p.Provision(context.Background(), "barman")

	assert.Equal(t, Failed, res.Status)
	assert.Contains(t, res.Err.Error(), "Failed to read public key")
	assert.Equal(t, 0, f.runner.RunAsCount())
}

func TestProvision_HomeProblems(t *testing.T) {
	tests := []struct {
		name    string
		account string
		want    string
	}{
		{"missing home", "nohome", "doesn't exist"},
		{"relative home", "relative", "no usable home directory"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			res := f.p.Provision(context.Background(), tt.account)

			assert.Equal(t, Failed, res.Status)
			assert.True(t, errors.IsCode(res.Err, errors.ErrConfig))
			assert.Contains(t, res.Err.Error(), tt.want)
			assert.Equal(t, 0, f.runner.RunAsCount())
		})
	}
}

func TestProvision_HomeIsFile(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, afero.WriteFile(f.fs, "/home/nohome", []byte("x"), 0644))

	res := f.p.Provision(context.Background(), "nohome")

	assert.Equal(t, Failed, res.Status)
	assert.Contains(t, res.Err.Error(), "is not a directory")
}

func TestProvision_EmptyName(t *testing.T) {
	f := newFixture(t)

	for _, name := range []string{"", "  "} {
		res := f.p.Provision(context.Background(), name)
		assert.Equal(t, Failed, res.Status)
		assert.Contains(t, res.Err.Error(), "Account name is empty")
	}
}

func TestProvision_LookupError(t *testing.T) {
	f := newFixture(t)
	f.p.Accounts = &account.PasswdFile{Fs: afero.NewMemMapFs(), Path: "/etc/passwd"}

	res := f.p.Provision(context.Background(), "barman")

	assert.Equal(t, Failed, res.Status)
	assert.Contains(t, res.Err.Error(), "Couldn't open account database")
}

func TestProvision_ConcurrentCallsGenerateOnce(t *testing.T) {
	f := newFixture(t)

	var mu sync.Mutex
	generation := 0
	f.runner.SetRunAs(func(ctx context.Context, acct, command string) (int, error) {
		mu.Lock()
		generation++
		n := generation
		mu.Unlock()

		// Widen the window so an unserialized caller would also see "absent"
		time.Sleep(20 * time.Millisecond)
		if exists, _ := afero.Exists(f.fs, barmanPriv); exists {
			return 1, nil // ssh-keygen refuses to overwrite
		}
		_ = afero.WriteFile(f.fs, barmanPriv, []byte("PRIVATE"), 0600)
		_ = afero.WriteFile(f.fs, barmanPub, []byte(testKey+" gen"+string(rune('0'+n))+"\n"), 0644)
		return 0, nil
	})

	const callers = 10
	results := make([]Result, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = f.p.Provision(context.Background(), "barman")
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, f.runner.RunAsCount(), "exactly one generation")
	generated := 0
	for _, res := range results {
		require.Equal(t, Found, res.Status, "err: %v", res.Err)
		assert.Equal(t, results[0].Key, res.Key, "every caller sees the same key")
		if res.Generated {
			generated++
		}
	}
	assert.Equal(t, 1, generated)
}

func TestProvision_DifferentAccountsDontBlock(t *testing.T) {
	f := newFixture(t)

	release := make(chan struct{})
	f.runner.SetRunAs(func(ctx context.Context, acct, command string) (int, error) {
		if acct == "barman" {
			<-release
		}
		home := map[string]string{"barman": barmanHome, "postgres": "/var/lib/postgresql"}[acct]
		_ = afero.WriteFile(f.fs, filepath.Join(home, ".ssh", "id_rsa.pub"), []byte(testKey), 0644)
		return 0, nil
	})

	done := make(chan Result)
	go func() { done <- f.p.Provision(context.Background(), "barman") }()

	// postgres completes while barman is still generating
	res := f.p.Provision(context.Background(), "postgres")
	assert.Equal(t, Found, res.Status)

	close(release)
	assert.Equal(t, Found, (<-done).Status)
}

func TestProvision_UsesLocker(t *testing.T) {
	f := newFixture(t)
	f.keygen(testKey)
	locker := locktesting.NewFakeLocker()
	f.p.Locker = locker

	res := f.p.Provision(context.Background(), "barman")

	assert.Equal(t, Found, res.Status)
	assert.Equal(t, 1, locker.SuccessfulLocks())
	assert.Equal(t, []string{"barman"}, locker.Released())
	assert.False(t, locker.Outstanding())
}

func TestProvision_LockTimeout(t *testing.T) {
	f := newFixture(t)
	f.keygen(testKey)
	f.p.Locker = locktesting.NewFakeLocker().SetContention("barman", "root@db1 (pid 7)")

	res := f.p.Provision(context.Background(), "barman")

	assert.Equal(t, Failed, res.Status)
	assert.True(t, stderrors.Is(res.Err, lock.ErrLocked))
	assert.Equal(t, 0, f.runner.RunAsCount())
}

func TestProvision_ExistingKeyIgnoresHeldLock(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, afero.WriteFile(f.fs, barmanPub, []byte("ssh-rsa AAAAB3...test\n"), 0644))
	locker := locktesting.NewFakeLocker().SetContention("barman", "root@db1 (pid 7)")
	f.p.Locker = locker

	res := f.p.Provision(context.Background(), "barman")

	require.Equal(t, Found, res.Status, "err: %v", res.Err)
	assert.Equal(t, "ssh-rsa AAAAB3...test", res.Fact())
	assert.Empty(t, locker.LockCalls, "reading an existing key takes no lock")
	assert.Zero(t, f.runner.RunAsCount())
}

func TestProvision_ExistingKeyWithUnwritableLockDir(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, afero.WriteFile(f.fs, barmanPub, []byte(testKey+"\n"), 0644))
	dir := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(dir, []byte("x"), 0644))
	f.p.Locker = lock.NewFileLocker(filepath.Join(dir, "locks"), time.Second)

	assert.Equal(t, testKey, f.p.Fact(context.Background(), "barman"))
}

func TestProvision_UnknownAccountSkipsLocker(t *testing.T) {
	f := newFixture(t)
	locker := locktesting.NewFakeLocker()
	f.p.Locker = locker

	f.p.Provision(context.Background(), "nobody")

	assert.Empty(t, locker.LockCalls)
}

func TestProvision_RealFileLocker(t *testing.T) {
	f := newFixture(t)
	f.keygen(testKey)
	f.p.Locker = lock.NewFileLocker(t.TempDir(), time.Second)

	assert.Equal(t, testKey, f.p.Fact(context.Background(), "barman"))
	assert.Equal(t, testKey, f.p.Fact(context.Background(), "barman"))
	assert.Equal(t, 1, f.runner.RunAsCount())
}

func TestProvision_DefaultsApplied(t *testing.T) {
	f := newFixture(t)
	f.keygen(testKey)
	f.p.KeyType = ""
	f.p.Timeout = 0
	f.p.Logger = nil

	res := f.p.Provision(context.Background(), "barman")

	require.Equal(t, Found, res.Status)
	assert.Contains(t, f.runner.RunAsCalls[0].Command, "-t 'rsa'")
}

func TestGenerateCommand(t *testing.T) {
	assert.Equal(t,
		"mkdir -p -m 700 '/var/lib/barman/.ssh' && ssh-keygen -t 'ed25519' -N '' -q -f '/var/lib/barman/.ssh/id_rsa'",
		GenerateCommand("ed25519", barmanPriv))
}

func TestResult_Fact(t *testing.T) {
	assert.Equal(t, testKey, found("barman", testKey, false).Fact())
	assert.Empty(t, notProvisioned("barman").Fact())
	assert.Empty(t, failed("barman", stderrors.New("x")).Fact())
	assert.Empty(t, Result{Status: Failed, Key: "leftover"}.Fact())
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "found", Found.String())
	assert.Equal(t, "not_provisioned", NotProvisioned.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "status(9)", Status(9).String())

	data, err := Found.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"found"`, string(data))
}

// unreadableFs fails reads of one path while letting Stat succeed.
type unreadableFs struct {
	afero.Fs
	path string
}

func (u *unreadableFs) Open(name string) (afero.File, error) {
	if name == u.path {
		return nil, stderrors.New("permission denied")
	}
	return u.Fs.Open(name)
}

func TestPeek(t *testing.T) {
	f := newFixture(t)

	res, pending := f.p.Peek("barman")
	assert.Equal(t, NotProvisioned, res.Status)
	assert.True(t, pending, "missing key means Provision would generate")

	res, pending = f.p.Peek("nobody")
	assert.Equal(t, NotProvisioned, res.Status)
	assert.False(t, pending)

	res, pending = f.p.Peek("nohome")
	assert.Equal(t, Failed, res.Status)
	assert.False(t, pending)

	require.NoError(t, afero.WriteFile(f.fs, barmanPub, []byte(testKey+"\n"), 0644))
	res, pending = f.p.Peek("barman")
	assert.Equal(t, Found, res.Status)
	assert.Equal(t, testKey, res.Key)
	assert.False(t, pending)

	assert.Equal(t, 0, f.runner.RunAsCount(), "peek never generates")
}

func TestPeek_PrivateWithoutPublic(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, afero.WriteFile(f.fs, barmanPriv, []byte("PRIVATE"), 0600))

	res, pending := f.p.Peek("barman")
	assert.Equal(t, Failed, res.Status)
	assert.False(t, pending)
}
