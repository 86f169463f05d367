package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"lrcsync/internal/ipc"
	"lrcsync/internal/lyrics"
	"lrcsync/internal/session"
	"lrcsync/internal/timeline"
	"lrcsync/pkg/lrc"
)

const maxBodySize = 1 << 20

// errorResponse JSON 错误体
type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger().Error().Err(err).Msg("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// statusFor 把领域错误映射为 HTTP 状态码
func statusFor(err error) int {
	var indexErr *timeline.IndexError
	var formatErr *lrc.FormatError
	switch {
	case errors.As(err, &indexErr), errors.Is(err, timeline.ErrIndexOutOfRange):
		return http.StatusNotFound
	case errors.As(err, &formatErr), errors.Is(err, timeline.ErrInvalidTime):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNothingToExport),
		errors.Is(err, session.ErrCursorAtEnd),
		errors.Is(err, session.ErrCursorAtStart),
		errors.Is(err, session.ErrLineUntimed):
		return http.StatusConflict
	case errors.Is(err, lyrics.ErrNotASong):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger().Error().Err(err).Msg("Request failed")
	}
	writeError(w, status, err)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func pathIndex(r *http.Request) (int, error) {
	raw := mux.Vars(r)["index"]
	index, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid line index %q", raw)
	}
	return index, nil
}

// parseTime 接受秒数或 MM:SS.ss
func parseTime(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if strings.Contains(raw, ":") {
		return lrc.Decode(raw)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q", raw)
	}
	return v, nil
}

// snapshotAfter 在事件循环中执行 fn，成功后返回最新快照
func (s *Server) snapshotAfter(w http.ResponseWriter, r *http.Request, fn func(*session.Session) error) {
	var snap session.Snapshot
	err := s.backend.Do(r.Context(), func(sess *session.Session) error {
		if err := fn(sess); err != nil {
			return err
		}
		snap = sess.Snapshot()
		return nil
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// applyCommand 执行同步命令并返回回复和最新快照
func (s *Server) applyCommand(w http.ResponseWriter, r *http.Request, cmd ipc.Command) {
	reply, err := s.backend.Apply(r.Context(), cmd)
	if err != nil {
		s.fail(w, err)
		return
	}
	var snap session.Snapshot
	if err := s.backend.Do(r.Context(), func(sess *session.Session) error {
		snap = sess.Snapshot()
		return nil
	}); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, commandResponse{Reply: reply, Session: snap})
}

type commandResponse struct {
	Reply   string           `json:"reply,omitempty"`
	Session session.Snapshot `json:"session"`
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	s.snapshotAfter(w, r, func(*session.Session) error { return nil })
}

func (s *Server) handleResetSession(w http.ResponseWriter, r *http.Request) {
	s.hub.BroadcastMessage(&WSMessage{Type: MsgTypeReset, Active: -1})
	s.snapshotAfter(w, r, func(sess *session.Session) error {
		sess.Reset()
		return nil
	})
}

func (s *Server) handleGetLyrics(w http.ResponseWriter, r *http.Request) {
	var text string
	if err := s.backend.Do(r.Context(), func(sess *session.Session) error {
		text = sess.Timeline().String()
		return nil
	}); err != nil {
		s.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, text)
}

func (s *Server) handlePutLyrics(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.snapshotAfter(w, r, func(sess *session.Session) error {
		sess.LoadText(string(body))
		return nil
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var exp session.Export
	if err := s.backend.Do(r.Context(), func(sess *session.Session) error {
		var err error
		exp, err = sess.Export()
		return err
	}); err != nil {
		s.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exp.Filename))
	io.WriteString(w, exp.Body)
}

type audioRequest struct {
	Name string `json:"name"`
}

func (s *Server) handlePutAudio(w http.ResponseWriter, r *http.Request) {
	var req audioRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.snapshotAfter(w, r, func(sess *session.Session) error {
		sess.SetAudio(strings.TrimSpace(req.Name))
		return nil
	})
}

type activeResponse struct {
	Position float64 `json:"position"`
	Index    int     `json:"index"`
	Found    bool    `json:"found"`
}

// handleActive 纯查询，不改变会话的播放位置
func (s *Server) handleActive(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("position")
	if raw == "" {
		writeError(w, http.StatusBadRequest, errors.New("missing position"))
		return
	}
	position, err := parseTime(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp := activeResponse{Position: position}
	if err := s.backend.Do(r.Context(), func(sess *session.Session) error {
		resp.Index, resp.Found = sess.Timeline().ActiveLineIndex(position)
		return nil
	}); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type timestampRequest struct {
	Seconds  *float64 `json:"seconds"`
	Timecode string   `json:"timecode"`
}

// handleSetTimestamp 请求体为空时使用当前播放位置
func (s *Server) handleSetTimestamp(w http.ResponseWriter, r *http.Request) {
	index, err := pathIndex(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req timestampRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var seconds *float64
	switch {
	case req.Timecode != "":
		v, err := lrc.Decode(req.Timecode)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		seconds = &v
	case req.Seconds != nil:
		seconds = req.Seconds
	}

	s.snapshotAfter(w, r, func(sess *session.Session) error {
		v := sess.Position()
		if seconds != nil {
			v = *seconds
		}
		return sess.Set(index, v)
	})
}

func (s *Server) handleClearTimestamp(w http.ResponseWriter, r *http.Request) {
	index, err := pathIndex(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.applyCommand(w, r, ipc.Command{Name: ipc.CmdClear, Index: index})
}

type nudgeRequest struct {
	Delta float64 `json:"delta"`
}

func (s *Server) handleNudge(w http.ResponseWriter, r *http.Request) {
	index, err := pathIndex(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req nudgeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.applyCommand(w, r, ipc.Command{Name: ipc.CmdNudge, Index: index, Value: req.Delta})
}

func (s *Server) handleJump(w http.ResponseWriter, r *http.Request) {
	index, err := pathIndex(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.applyCommand(w, r, ipc.Command{Name: ipc.CmdJump, Index: index})
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	s.applyCommand(w, r, ipc.Command{Name: mux.Vars(r)["action"]})
}

type playbackRequest struct {
	Playing  *bool    `json:"playing"`
	Position *float64 `json:"position"`
}

func (s *Server) handlePlayback(w http.ResponseWriter, r *http.Request) {
	var req playbackRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	switch {
	case req.Position != nil:
		if *req.Position < 0 {
			writeError(w, http.StatusBadRequest, errors.New("negative position"))
			return
		}
		if req.Playing != nil {
			if _, err := s.backend.Apply(r.Context(), playingCommand(*req.Playing)); err != nil {
				s.fail(w, err)
				return
			}
		}
		s.applyCommand(w, r, ipc.Command{Name: ipc.CmdSeek, Value: *req.Position})
	case req.Playing != nil:
		s.applyCommand(w, r, playingCommand(*req.Playing))
	default:
		writeError(w, http.StatusBadRequest, errors.New("want playing or position"))
	}
}

func playingCommand(playing bool) ipc.Command {
	if playing {
		return ipc.Command{Name: ipc.CmdPlay}
	}
	return ipc.Command{Name: ipc.CmdPause}
}

type importRequest struct {
	Name     string  `json:"name"`
	Duration float64 `json:"duration"`
}

// handleImport 网络请求在事件循环之外完成，拿到文本后再载入会话
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if s.importer == nil {
		writeError(w, http.StatusNotImplemented, errors.New("lyrics import is not configured"))
		return
	}
	var req importRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		if err := s.backend.Do(r.Context(), func(sess *session.Session) error {
			name = sess.AudioName()
			return nil
		}); err != nil {
			s.fail(w, err)
			return
		}
	}
	if name == "" {
		writeError(w, http.StatusBadRequest, errors.New("no audio name to import lyrics for"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()
	text, err := s.importer.Import(ctx, name, req.Duration)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadGateway
		}
		logger().Warn().Err(err).Str("name", name).Msg("Lyrics import failed")
		writeError(w, status, err)
		return
	}

	s.snapshotAfter(w, r, func(sess *session.Session) error {
		if sess.AudioName() == "" {
			sess.SetAudio(name)
		}
		sess.LoadText(text)
		return nil
	})
}
