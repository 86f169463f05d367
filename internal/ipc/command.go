package ipc

import (
	"fmt"
	"strconv"
	"strings"

	"lrcsync/pkg/lrc"
)

// 客户端命令名
const (
	CmdNext   = "next"
	CmdPrev   = "prev"
	CmdPlay   = "play"
	CmdPause  = "pause"
	CmdToggle = "toggle"
	CmdRewind = "rewind"
	CmdEnd    = "end"
	CmdExport = "export"
	CmdStatus = "status"
	CmdNudge  = "nudge"
	CmdClear  = "clear"
	CmdSet    = "set"
	CmdJump   = "jump"
	CmdSeek   = "seek"
)

// Command 客户端发来的一条命令。
// nudge 的增量可以写成 "+"/"-"（小步）或 "++"/"--"（大步），此时 Step 非零，Value 为 0
type Command struct {
	Name  string
	Index int
	Value float64
	Step  int
}

func (c Command) String() string {
	switch c.Name {
	case CmdNudge, CmdSet:
		if c.Step != 0 {
			return fmt.Sprintf("%s %d %s", c.Name, c.Index, stepToken(c.Step))
		}
		return fmt.Sprintf("%s %d %.2f", c.Name, c.Index, c.Value)
	case CmdClear, CmdJump:
		return fmt.Sprintf("%s %d", c.Name, c.Index)
	case CmdSeek:
		return fmt.Sprintf("%s %.2f", c.Name, c.Value)
	default:
		return c.Name
	}
}

// ParseCommand 解析一行命令，例如 "nudge 3 -0.1"、"set 2 00:12.50"
func ParseCommand(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, fmt.Errorf("empty command")
	}
	cmd := Command{Name: strings.ToLower(fields[0])}
	args := fields[1:]

	want := func(n int) error {
		if len(args) != n {
			return fmt.Errorf("%s: want %d argument(s), got %d", cmd.Name, n, len(args))
		}
		return nil
	}

	switch cmd.Name {
	case CmdNext, CmdPrev, CmdPlay, CmdPause, CmdToggle, CmdRewind, CmdEnd, CmdExport, CmdStatus:
		return cmd, want(0)

	case CmdClear, CmdJump:
		if err := want(1); err != nil {
			return cmd, err
		}
		idx, err := parseIndex(args[0])
		cmd.Index = idx
		return cmd, err

	case CmdNudge, CmdSet:
		if err := want(2); err != nil {
			return cmd, err
		}
		idx, err := parseIndex(args[0])
		if err != nil {
			return cmd, err
		}
		cmd.Index = idx
		if cmd.Name == CmdNudge {
			if step, ok := steps[args[1]]; ok {
				cmd.Step = step
				return cmd, nil
			}
			cmd.Value, err = strconv.ParseFloat(args[1], 64)
		} else {
			cmd.Value, err = parseSeconds(args[1])
		}
		if err != nil {
			return cmd, fmt.Errorf("%s: invalid value %q: %w", cmd.Name, args[1], err)
		}
		return cmd, nil

	case CmdSeek:
		if err := want(1); err != nil {
			return cmd, err
		}
		v, err := parseSeconds(args[0])
		if err != nil {
			return cmd, fmt.Errorf("seek: invalid value %q: %w", args[0], err)
		}
		cmd.Value = v
		return cmd, nil

	default:
		return cmd, fmt.Errorf("unknown command: %s", cmd.Name)
	}
}

var steps = map[string]int{"+": 1, "-": -1, "++": 2, "--": -2}

func stepToken(step int) string {
	for tok, v := range steps {
		if v == step {
			return tok
		}
	}
	return strconv.Itoa(step)
}

func parseIndex(s string) (int, error) {
	idx, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid line index %q", s)
	}
	return idx, nil
}

// parseSeconds 接受秒数或 MM:SS.ss
func parseSeconds(s string) (float64, error) {
	if strings.Contains(s, ":") {
		return lrc.Decode(s)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, fmt.Errorf("negative time")
	}
	return v, nil
}
