package session

import "lrcsync/pkg/lrc"

// LineView 供展示层使用的歌词行
type LineView struct {
	Index     int      `json:"index"`
	Text      string   `json:"text"`
	Timestamp *float64 `json:"timestamp,omitempty"`
	Timecode  string   `json:"timecode,omitempty"`
}

// Snapshot 会话状态快照
type Snapshot struct {
	ID       string            `json:"id"`
	Audio    string            `json:"audio"`
	Filename string            `json:"filename"`
	Position float64           `json:"position"`
	Playing  bool              `json:"playing"`
	Cursor   int               `json:"cursor"`
	Active   int               `json:"active"`
	End      *float64          `json:"end,omitempty"`
	Policy   string            `json:"policy"`
	Lines    []LineView        `json:"lines"`
	Meta     map[string]string `json:"meta,omitempty"`
}

// Snapshot 返回当前状态，active 为 -1 表示没有当前行
func (s *Session) Snapshot() Snapshot {
	active, _ := s.Active()
	lines := s.timeline.Lines()
	views := make([]LineView, len(lines))
	for i, line := range lines {
		views[i] = LineView{Index: i, Text: line.Text}
		if v, ok := line.Timestamp.Get(); ok {
			v := v
			views[i].Timestamp = &v
			views[i].Timecode = lrc.Encode(v)
		}
	}

	snap := Snapshot{
		ID:       s.ID,
		Audio:    s.audioName,
		Filename: s.Filename() + lrc.Extension,
		Position: s.position,
		Playing:  s.playing,
		Cursor:   s.cursor,
		Active:   active,
		Policy:   s.policy.String(),
		Lines:    views,
		Meta:     metaMap(s.meta),
	}
	if v, ok := s.end.Get(); ok {
		snap.End = &v
	}
	return snap
}

func metaMap(m lrc.Metadata) map[string]string {
	if m.IsEmpty() {
		return nil
	}
	out := make(map[string]string, len(m.Extra)+4)
	for k, v := range m.Extra {
		out[k] = v
	}
	set := func(k, v string) {
		if v != "" {
			out[k] = v
		}
	}
	set("ar", m.Artist)
	set("ti", m.Title)
	set("al", m.Album)
	set("by", m.Author)
	return out
}
