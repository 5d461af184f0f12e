// Package audio records the microphone through an ffmpeg subprocess.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/therealutkarshpriyadarshi/ideasaver/internal/capture"
)

const (
	startupGrace = 250 * time.Millisecond
	stopTimeout  = 1200 * time.Millisecond
	checkTimeout = 3 * time.Second
)

// Config selects the capture device and encoding
type Config struct {
	Command     string
	InputFormat string
	InputDevice string
	SampleRate  int
	Channels    int
}

func (c Config) withDefaults() Config {
	if c.Command == "" {
		c.Command = "ffmpeg"
	}
	if c.InputFormat == "" {
		c.InputFormat = "pulse"
	}
	if c.InputDevice == "" {
		c.InputDevice = "default"
	}
	if c.SampleRate <= 0 {
		c.SampleRate = 48000
	}
	if c.Channels <= 0 {
		c.Channels = 1
	}
	return c
}

func (c Config) inputArgs() []string {
	return []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", c.InputFormat,
		"-i", c.InputDevice,
		"-ac", strconv.Itoa(c.Channels),
		"-ar", strconv.Itoa(c.SampleRate),
	}
}

// Microphone captures Ogg/Opus audio with ffmpeg
type Microphone struct {
	cfg Config
}

// NewMicrophone creates a microphone for cfg
func NewMicrophone(cfg Config) *Microphone {
	return &Microphone{cfg: cfg.withDefaults()}
}

// Permission checks that ffmpeg exists and can open the input device
func (m *Microphone) Permission(ctx context.Context) (bool, error) {
	if _, err := exec.LookPath(m.cfg.Command); err != nil {
		return false, fmt.Errorf("ffmpeg not found: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	args := append(m.cfg.inputArgs(), "-t", "0.1", "-f", "null", "-")
	cmd := exec.CommandContext(ctx, m.cfg.Command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return false, fmt.Errorf("cannot open %s device %q: %w: %s",
			m.cfg.InputFormat, m.cfg.InputDevice, err, strings.TrimSpace(stderr.String()))
	}
	return true, nil
}

// Start launches ffmpeg and buffers its output until Finish or Discard
func (m *Microphone) Start(ctx context.Context) (capture.AudioSession, error) {
	args := append(m.cfg.inputArgs(), "-c:a", "libopus", "-f", "ogg", "-")
	cmd := exec.Command(m.cfg.Command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	s := &session{process: cmd.Process, stderr: &stderr, done: make(chan error, 1)}
	go func() {
		_, copyErr := io.Copy(&s.buf, stdout)
		waitErr := cmd.Wait()
		if waitErr == nil {
			waitErr = copyErr
		}
		s.done <- waitErr
		close(s.done)
	}()

	select {
	case err := <-s.done:
		if err != nil {
			return nil, fmt.Errorf("ffmpeg exited before capture started: %w: %s", err, strings.TrimSpace(stderr.String()))
		}
		return nil, errors.New("ffmpeg exited before capture started")
	case <-time.After(startupGrace):
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-s.done
		return nil, ctx.Err()
	}

	return s, nil
}

type session struct {
	process *os.Process
	stderr  *bytes.Buffer
	buf     lockedBuffer
	done    chan error

	stopOnce sync.Once
	stopErr  error
}

// Finish stops ffmpeg gracefully and returns the encoded audio
func (s *session) Finish() (capture.Audio, error) {
	if err := s.stop(os.Interrupt); err != nil {
		return capture.Audio{}, err
	}
	return capture.Audio{MimeType: "audio/ogg", Data: s.buf.Bytes()}, nil
}

// Discard kills ffmpeg and drops the audio
func (s *session) Discard() error {
	err := s.stop(os.Kill)
	s.buf.Reset()
	return err
}

func (s *session) stop(sig os.Signal) error {
	s.stopOnce.Do(func() {
		_ = s.process.Signal(sig)

		select {
		case err, ok := <-s.done:
			if ok {
				s.stopErr = normalizeStopErr(err)
			}
		case <-time.After(stopTimeout):
			_ = s.process.Kill()
			if err, ok := <-s.done; ok {
				s.stopErr = normalizeStopErr(err)
			}
		}

		if s.stopErr != nil && s.stderr.Len() > 0 {
			s.stopErr = fmt.Errorf("%w: %s", s.stopErr, strings.TrimSpace(s.stderr.String()))
		}
	})
	return s.stopErr
}

// normalizeStopErr ignores the exit status of a signalled ffmpeg
func normalizeStopErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf.Bytes()...)
}

func (b *lockedBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}
