// Package hooks runs lifecycle hook scripts with /bin/sh.
package hooks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"appdeck/internal/domain/repository"
	"appdeck/pkg/log"
)

// ShellRunner implements repository.HookRunner.
type ShellRunner struct {
	shell string
}

var _ repository.HookRunner = (*ShellRunner)(nil)

func NewShellRunner() *ShellRunner {
	return &ShellRunner{shell: "/bin/sh"}
}

// Run executes the hook in req.Dir as req.User. Switching user requires
// running as root.
func (r *ShellRunner) Run(ctx context.Context, req repository.HookRequest) error {
	var cmd *exec.Cmd
	switch {
	case req.Script != "":
		cmd = exec.CommandContext(ctx, r.shell, "-c", req.Script)
	case req.Path != "":
		cmd = exec.CommandContext(ctx, r.shell, req.Path)
	default:
		return errors.New("hook has neither script nor path")
	}
	cmd.Dir = req.Dir
	cmd.Env = append(os.Environ(), envList(req.Env)...)

	cred, err := credential(req.User)
	if err != nil {
		return err
	}
	if cred != nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{Credential: cred}
	}

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	log.Info("Running hook", "hook", req.Name, "user", req.User, "dir", req.Dir)
	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("hook %s timed out", req.Name)
		}
		return fmt.Errorf("hook %s: %w: %s", req.Name, err, strings.TrimSpace(out.String()))
	}
	log.Debug("Hook finished", "hook", req.Name, "output", strings.TrimSpace(out.String()))
	return nil
}

// credential returns nil when the hook runs as the current user.
func credential(name string) (*syscall.Credential, error) {
	if name == "" {
		return nil, nil
	}
	u, err := user.Lookup(name)
	if err != nil {
		return nil, fmt.Errorf("unknown hook user %q: %w", name, err)
	}
	uid, err := strconv.ParseUint(u.Uid, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("user %q has non-numeric uid %s", name, u.Uid)
	}
	gid, err := strconv.ParseUint(u.Gid, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("user %q has non-numeric gid %s", name, u.Gid)
	}
	if int(uid) == os.Getuid() {
		return nil, nil
	}
	if os.Getuid() != 0 {
		return nil, fmt.Errorf("cannot run hook as %q without root privileges", name)
	}
	return &syscall.Credential{Uid: uint32(uid), Gid: uint32(gid)}, nil
}

func envList(vars map[string]string) []string {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+vars[k])
	}
	return out
}
