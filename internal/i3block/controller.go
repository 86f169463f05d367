package i3block

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultSignal i3blocks 的 signal=21 对应 SIGRTMIN+21
const DefaultSignal = 55

// ErrNotFound 没有找到 i3blocks 进程
var ErrNotFound = errors.New("i3blocks process not found")

// logger 每次取全局 logger，使 SetupLogging 之后的输出配置生效
func logger() *zerolog.Logger {
	l := log.With().Str("component", "i3block").Logger()
	return &l
}

// Controller 定期刷新 i3blocks 的 PID，并在歌词变化时通知它重绘
type Controller struct {
	signal   syscall.Signal
	interval time.Duration

	mu  sync.RWMutex
	pid int

	// 便于测试替换
	find func() (int, error)
	kill func(pid int, sig syscall.Signal) error
}

// NewController signal 小于等于 0 时使用 DefaultSignal
func NewController(signal int) *Controller {
	if signal <= 0 {
		signal = DefaultSignal
	}
	return &Controller{
		signal:   syscall.Signal(signal),
		interval: 10 * time.Second,
		pid:      -1,
		find:     findPID,
		kill:     sendSignal,
	}
}

// Run 每 10 秒刷新一次 PID，直到 ctx 结束
func (c *Controller) Run(ctx context.Context) {
	if err := c.Refresh(); err != nil {
		logger().Debug().Err(err).Msg("Initial i3blocks lookup failed")
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	logger().Info().Int("signal", int(c.signal)).Msg("i3block controller started")
	for {
		select {
		case <-ticker.C:
			if err := c.Refresh(); err != nil {
				logger().Debug().Err(err).Msg("Failed to refresh i3blocks PID")
			}
		case <-ctx.Done():
			logger().Info().Msg("i3block controller stopped")
			return
		}
	}
}

// Refresh 重新查找 i3blocks 进程
func (c *Controller) Refresh() error {
	pid, err := c.find()

	c.mu.Lock()
	oldPID := c.pid
	if err != nil {
		c.pid = -1
	} else {
		c.pid = pid
	}
	c.mu.Unlock()

	if err != nil {
		return err
	}
	if oldPID != pid {
		logger().Info().Int("old_pid", oldPID).Int("pid", pid).Msg("i3blocks PID updated")
	}
	return nil
}

// PID 当前记录的 PID，未找到时为 -1
func (c *Controller) PID() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pid
}

// Notify 向 i3blocks 发送刷新信号
func (c *Controller) Notify() error {
	pid := c.PID()
	if pid <= 0 {
		return ErrNotFound
	}
	if err := c.kill(pid, c.signal); err != nil {
		return fmt.Errorf("failed to send signal %d to process %d: %w", c.signal, pid, err)
	}
	return nil
}

func sendSignal(pid int, sig syscall.Signal) error {
	process, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return process.Signal(sig)
}

func findPID() (int, error) {
	output, err := exec.Command("pgrep", "-x", "i3blocks").Output()
	if err != nil {
		// pgrep 不可用或没有匹配时退回到 ps
		return findPIDWithPs()
	}
	return firstPID(string(output))
}

func findPIDWithPs() (int, error) {
	output, err := exec.Command("ps", "-eo", "pid,comm").Output()
	if err != nil {
		return -1, fmt.Errorf("failed to run ps: %w", err)
	}
	for _, line := range strings.Split(string(output), "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[1] == "i3blocks" {
			return firstPID(fields[0])
		}
	}
	return -1, ErrNotFound
}

// firstPID 取输出中的第一个 PID
func firstPID(output string) (int, error) {
	fields := strings.Fields(output)
	if len(fields) == 0 {
		return -1, ErrNotFound
	}
	pid, err := strconv.Atoi(fields[0])
	if err != nil {
		return -1, fmt.Errorf("failed to parse PID %q: %w", fields[0], err)
	}
	return pid, nil
}
