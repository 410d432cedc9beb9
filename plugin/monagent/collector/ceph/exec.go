// SPDX-License-Identifier: GPL-3.0-or-later

package ceph

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/tidwall/gjson"

	"github.com/monagent/monagent/logger"
)

type cephCli interface {
	status(ctx context.Context) (*gjson.Result, error)
	dfDetail(ctx context.Context) (*gjson.Result, error)
}

func newCephExec(binPath, cluster string, useSudo bool, timeout time.Duration, log *logger.Logger) *cephExec {
	return &cephExec{
		Logger:  log,
		binPath: binPath,
		cluster: cluster,
		useSudo: useSudo,
		timeout: timeout,
	}
}

type cephExec struct {
	*logger.Logger

	binPath string
	cluster string
	useSudo bool
	timeout time.Duration
}

func (e *cephExec) status(ctx context.Context) (*gjson.Result, error) {
	return e.execute(ctx, "status")
}

func (e *cephExec) dfDetail(ctx context.Context) (*gjson.Result, error) {
	return e.execute(ctx, "df", "detail")
}

func (e *cephExec) execute(ctx context.Context, args ...string) (*gjson.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	args = append([]string{"--cluster", e.cluster, "--format", "json"}, args...)

	var cmd *exec.Cmd
	if e.useSudo {
		cmd = exec.CommandContext(ctx, "sudo", append([]string{"-n", e.binPath}, args...)...)
	} else {
		cmd = exec.CommandContext(ctx, e.binPath, args...)
	}

	e.Debugf("executing '%s'", cmd)

	bs, err := cmd.Output()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("'%s' timed out after %s", cmd, e.timeout)
		}
		return nil, fmt.Errorf("'%s' execution failed: %v", cmd, err)
	}

	return parseOutput(cmd.String(), bs)
}

func parseOutput(cmdStr string, bs []byte) (*gjson.Result, error) {
	if len(bs) == 0 {
		return nil, fmt.Errorf("'%s' returned no output", cmdStr)
	}
	if !gjson.ValidBytes(bs) {
		return nil, fmt.Errorf("'%s' returned invalid JSON output", cmdStr)
	}

	res := gjson.ParseBytes(bs)
	return &res, nil
}
