package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"lrcsync/internal/app"
	"lrcsync/internal/lyrics"
	"lrcsync/internal/timeline"
	"lrcsync/pkg/fileutil"
	"lrcsync/pkg/lrc"
)

var (
	activePolicy string
	fetchOutput  string
	fetchLength  float64
	nudgeWrite   bool
)

// parseSeconds 接受 MM:SS.ss 或秒数
func parseSeconds(s string) (float64, error) {
	if v, err := lrc.Decode(s); err == nil {
		return v, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: want MM:SS.ss or seconds", s)
	}
	return v, nil
}

func readTimeline(path string, opts ...timeline.Option) (*timeline.Timeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return timeline.FromText(string(data), opts...), nil
}

var fmtCmd = &cobra.Command{
	Use:     "fmt <file>",
	Short:   "规范化歌词文件并输出为 LRC",
	Example: "  lrcsync fmt song.lrc > clean.lrc",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		for i, r := range lrc.ParseLines(string(data)) {
			if r.Status == lrc.StatusDegraded {
				fmt.Fprintf(os.Stderr, "line %d: %v\n", i, r.Err)
			}
		}
		fmt.Fprintln(cmd.OutOrStdout(), lrc.Format(lrc.Parse(string(data))))
		return nil
	},
}

var activeCmd = &cobra.Command{
	Use:     "active <file> <position>",
	Short:   "输出某个播放位置对应的歌词行",
	Example: "  lrcsync active song.lrc 01:02.50\n  lrcsync active song.lrc 62.5 --policy first",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		policy, err := timeline.ParsePolicy(activePolicy)
		if err != nil {
			return err
		}
		pos, err := parseSeconds(args[1])
		if err != nil {
			return err
		}
		tl, err := readTimeline(args[0], timeline.WithPolicy(policy))
		if err != nil {
			return err
		}
		idx, ok := tl.ActiveLineIndex(pos)
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "-1")
			return nil
		}
		line, _ := tl.Line(idx)
		fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", idx, lrc.FormatLine(line))
		return nil
	},
}

var nudgeCmd = &cobra.Command{
	Use:   "nudge <file> <index> <delta>",
	Short: "微调某一行的时间戳",
	Long:  `微调某一行的时间戳。选项需写在文件名之前，这样负数的 delta 不会被当作选项。`,
	Example: `  lrcsync nudge song.lrc 3 -0.25
  lrcsync nudge -w song.lrc 3 0.1`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid index %q: %w", args[1], err)
		}
		delta, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			return fmt.Errorf("invalid delta %q: %w", args[2], err)
		}
		tl, err := readTimeline(args[0])
		if err != nil {
			return err
		}
		ts, err := tl.NudgeTimestamp(index, delta)
		if err != nil {
			return err
		}
		if !ts.IsSet() {
			fmt.Fprintf(os.Stderr, "line %d has no timestamp, unchanged\n", index)
		}

		if !nudgeWrite {
			fmt.Fprintln(cmd.OutOrStdout(), tl.String())
			return nil
		}
		if err := fileutil.WriteFileAtomic(args[0], []byte(tl.String()+"\n"), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", args[0], err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), ts)
		return nil
	},
}

var fetchCmd = &cobra.Command{
	Use:   "fetch <song name>",
	Short: "在线获取歌词",
	Long:  `按音频名在线查找歌词（LRCLib/网易云），结果写入缓存目录并输出。`,
	Example: `  lrcsync fetch "周杰伦 - 晴天.mp3"
  lrcsync fetch "Artist - Title" --duration 215 -o song.lrc`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		closer := app.SetupLogging(cfg.Log)
		defer closer.Close()

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		if err := os.MkdirAll(cfg.App.CacheDir, 0755); err != nil {
			return fmt.Errorf("failed to create cache directory: %w", err)
		}
		importer, cleanup, err := app.NewImporter(ctx, cfg)
		defer cleanup()
		if err != nil {
			return err
		}

		text, err := importer.Import(ctx, args[0], fetchLength)
		if errors.Is(err, lyrics.ErrNotASong) {
			return fmt.Errorf("%q does not look like a song name: %w", args[0], err)
		}
		if err != nil {
			return err
		}
		if fetchOutput == "" {
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		}
		return fileutil.WriteFileAtomic(fetchOutput, []byte(text+"\n"), 0644)
	},
}

func init() {
	activeCmd.Flags().StringVar(&activePolicy, "policy", timeline.PolicyLatest.String(), "多行同时满足时的选择策略: latest|first")
	nudgeCmd.Flags().BoolVarP(&nudgeWrite, "write", "w", false, "直接改写文件")
	nudgeCmd.Flags().SetInterspersed(false)
	fetchCmd.Flags().StringVarP(&fetchOutput, "output", "o", "", "写入文件而不是标准输出")
	fetchCmd.Flags().Float64Var(&fetchLength, "duration", 0, "音频时长（秒），用于匹配版本")

	rootCmd.AddCommand(fmtCmd, activeCmd, nudgeCmd, fetchCmd)
}
