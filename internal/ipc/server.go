package ipc

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"lrcsync/pkg/fileutil"
)

const (
	sendBuffer = 64
	writeWait  = 2 * time.Second
)

// client 每个连接一个发送队列，由 writePump 单独写出，慢客户端不会拖住广播方
type client struct {
	conn net.Conn
	send chan string
}

func (c *client) writePump() {
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if _, err := c.conn.Write([]byte(msg + "\n")); err != nil {
			log.Debug().Err(err).Msg("IPC write failed")
			// 关闭连接让读循环退出并注销客户端
			c.conn.Close()
			for range c.send {
			}
			return
		}
	}
}

// Handler 处理一条命令，返回给该客户端的回复
type Handler func(cmd Command) (string, error)

// Server unix socket 服务：向所有客户端推送当前歌词行，并接收同步命令
type Server struct {
	socketPath      string
	statusFile      string
	handler         Handler
	listener        net.Listener
	clientConns     map[*client]struct{}
	clientConnsLock sync.Mutex
	current         string
	currentLock     sync.Mutex
	lockFile        *os.File
	lockFilePath    string
}

// NewServer statusFile 为空时不写状态文件
func NewServer(socketPath, statusFile string, handler Handler) *Server {
	return &Server{
		socketPath:   socketPath,
		statusFile:   statusFile,
		handler:      handler,
		clientConns:  make(map[*client]struct{}),
		lockFilePath: socketPath + ".lock",
	}
}

func (s *Server) checkAndCleanOldLock() {
	content, err := os.ReadFile(s.lockFilePath)
	if os.IsNotExist(err) {
		return
	}
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read lock file, removing it")
		os.Remove(s.lockFilePath)
		return
	}

	pidStr := strings.TrimSpace(string(content))
	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		log.Warn().Str("pid_str", pidStr).Msg("Invalid PID in lock file, removing it")
		os.Remove(s.lockFilePath)
		return
	}

	// kill(pid, 0) 只检查进程是否存在
	if syscall.Kill(pid, 0) != nil {
		log.Info().Int("old_pid", pid).Msg("Process in lock file is not running, removing lock file")
		os.Remove(s.lockFilePath)
		return
	}

	log.Info().Int("existing_pid", pid).Msg("Another process is still running")
}

func (s *Server) acquireLock() error {
	s.checkAndCleanOldLock()

	file, err := os.OpenFile(s.lockFilePath, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create lock file: %w", err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		file.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return fmt.Errorf("another lrcsync instance is already running")
		}
		return fmt.Errorf("failed to acquire lock: %w", err)
	}

	err = file.Truncate(0)
	if err == nil {
		_, err = fmt.Fprintf(file, "%d\n", os.Getpid())
	}
	if err != nil {
		syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
		file.Close()
		return fmt.Errorf("failed to write PID to lock file: %w", err)
	}

	s.lockFile = file
	log.Info().Str("lock_file", s.lockFilePath).Int("pid", os.Getpid()).Msg("Acquired process lock")
	return nil
}

func (s *Server) releaseLock() {
	if s.lockFile == nil {
		return
	}
	syscall.Flock(int(s.lockFile.Fd()), syscall.LOCK_UN)
	s.lockFile.Close()
	os.Remove(s.lockFilePath)
	log.Info().Str("lock_file", s.lockFilePath).Msg("Released process lock")
	s.lockFile = nil
}

func (s *Server) Start() error {
	if err := s.acquireLock(); err != nil {
		return err
	}

	if err := os.RemoveAll(s.socketPath); err != nil {
		s.releaseLock()
		return err
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		s.releaseLock()
		return err
	}
	s.listener = listener

	log.Info().Str("socket_path", s.socketPath).Msg("IPC server listening")

	go s.acceptConnections()

	return nil
}

// Addr 监听地址
func (s *Server) Addr() string {
	return s.socketPath
}

func (s *Server) acceptConnections() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Error().Err(err).Msg("Failed to accept IPC connection")
			continue
		}
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	c := &client{conn: conn, send: make(chan string, sendBuffer)}

	// 注册和发送当前行在同一把锁内，保证新客户端不会漏掉之后的广播
	s.clientConnsLock.Lock()
	s.clientConns[c] = struct{}{}
	s.currentLock.Lock()
	c.send <- s.current
	s.currentLock.Unlock()
	s.clientConnsLock.Unlock()

	log.Info().Msg("IPC client connected")
	go c.writePump()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !s.enqueue(c, s.dispatch(line)) {
			break
		}
	}

	s.clientConnsLock.Lock()
	s.removeLocked(c)
	s.clientConnsLock.Unlock()
	log.Info().Msg("IPC client disconnected")
}

func (s *Server) dispatch(line string) string {
	cmd, err := ParseCommand(line)
	if err != nil {
		log.Warn().Err(err).Str("line", line).Msg("Invalid IPC command")
		return "error: " + err.Error()
	}
	if s.handler == nil {
		return "error: no handler"
	}
	reply, err := s.handler(cmd)
	if err != nil {
		log.Warn().Err(err).Str("command", cmd.String()).Msg("IPC command failed")
		return "error: " + err.Error()
	}
	if reply == "" {
		return "ok"
	}
	return "ok: " + reply
}

// enqueue 把回复放进客户端的发送队列；队列满说明客户端不再读取，断开它
func (s *Server) enqueue(c *client, msg string) bool {
	s.clientConnsLock.Lock()
	defer s.clientConnsLock.Unlock()
	if _, ok := s.clientConns[c]; !ok {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		log.Warn().Msg("IPC client not reading, dropping")
		s.removeLocked(c)
		return false
	}
}

// removeLocked 调用方需持有 clientConnsLock
func (s *Server) removeLocked(c *client) {
	if _, ok := s.clientConns[c]; !ok {
		return
	}
	delete(s.clientConns, c)
	close(c.send)
	c.conn.Close()
}

// Broadcast 推送当前歌词行。不会阻塞：发送队列已满的客户端会被断开
func (s *Server) Broadcast(text string) {
	if s.statusFile != "" {
		if err := fileutil.WriteFileOverwrite(s.statusFile, []byte(text+"\n"), 0644); err != nil {
			log.Warn().Err(err).Str("status_file", s.statusFile).Msg("Failed to write status file")
		}
	}
	s.currentLock.Lock()
	s.current = text
	s.currentLock.Unlock()

	s.clientConnsLock.Lock()
	defer s.clientConnsLock.Unlock()
	for c := range s.clientConns {
		select {
		case c.send <- text:
		default:
			log.Warn().Msg("IPC client too slow, dropping")
			s.removeLocked(c)
		}
	}
}

// ClientCount 当前连接的客户端数
func (s *Server) ClientCount() int {
	s.clientConnsLock.Lock()
	defer s.clientConnsLock.Unlock()
	return len(s.clientConns)
}

func (s *Server) Close() {
	if s.listener != nil {
		s.listener.Close()
	}
	s.clientConnsLock.Lock()
	for c := range s.clientConns {
		s.removeLocked(c)
	}
	s.clientConnsLock.Unlock()
	s.releaseLock()
}
