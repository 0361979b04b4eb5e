package detector

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"

	"github.com/ayusman/airpointer/internal/landmark"
)

const scriptName = "mediapipe_service.py"

// MediaPipeDetector implements Detector using a Python MediaPipe gesture
// recognizer subprocess.
type MediaPipeDetector struct {
	config    Config
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	mu        sync.Mutex
	started   bool
	idleTimer *time.Timer
}

// NewMediaPipeDetector creates a new MediaPipe detector. The service is
// started by Load.
func NewMediaPipeDetector(config Config) *MediaPipeDetector {
	return &MediaPipeDetector{config: config}
}

// Load starts the service and waits for it to report that the model is
// ready. Any failure wraps ErrUnavailable.
func (d *MediaPipeDetector) Load(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ensureStarted(ctx)
}

type exchange struct {
	line []byte
	err  error
}

// Detect sends one frame to the service and waits for its answer or for ctx.
func (d *MediaPipeDetector) Detect(ctx context.Context, frame *gocv.Mat, tsMs int64) ([]landmark.Hand, error) {
	if frame == nil || frame.Empty() {
		return nil, fmt.Errorf("detect: empty frame")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ensureStarted(ctx); err != nil {
		return nil, err
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	data := append([]byte(nil), buf.GetBytes()...)
	buf.Close()

	stdin, stdout := d.stdin, d.stdout
	done := make(chan exchange, 1)
	go func() {
		if err := writeRequest(stdin, tsMs, data); err != nil {
			done <- exchange{err: err}
			return
		}
		line, err := stdout.ReadBytes('\n')
		done <- exchange{line: line, err: err}
	}()

	var ex exchange
	select {
	case ex = <-done:
	case <-ctx.Done():
		// The stream is mid-message; the only way back to a clean state is
		// a fresh process.
		d.kill()
		<-done
		d.shutdown()
		return nil, ctx.Err()
	}

	if ex.err != nil {
		d.kill()
		d.shutdown()
		return nil, fmt.Errorf("classifier exchange: %w", ex.err)
	}

	d.resetIdleTimer()

	return decodeResponse(ex.line, d.config.MinConfidence)
}

// Close shuts down the Python process.
func (d *MediaPipeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shutdown()
}

func (d *MediaPipeDetector) ensureStarted(ctx context.Context) error {
	if d.started {
		return nil
	}

	scriptPath := d.config.ScriptPath
	if scriptPath == "" {
		scriptPath = findMediaPipeScript()
	}
	if scriptPath == "" {
		return fmt.Errorf("%w: %s not found", ErrUnavailable, scriptName)
	}
	if _, err := os.Stat(scriptPath); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	pythonPath := d.config.PythonPath
	if pythonPath == "" {
		pythonPath = findVenvPython()
	}
	if pythonPath == "" {
		pythonPath = "python3"
	}

	cmd := exec.Command(pythonPath, scriptPath,
		"--max-hands", strconv.Itoa(d.config.MaxHands),
		"--min-detection-confidence", strconv.FormatFloat(d.config.MinConfidence, 'f', -1, 64),
		"--min-tracking-confidence", strconv.FormatFloat(d.config.MinTrackingConf, 'f', -1, 64),
	)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("%w: create stdin pipe: %v", ErrUnavailable, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("%w: create stdout pipe: %v", ErrUnavailable, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("%w: create stderr pipe: %v", ErrUnavailable, err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: start service: %v", ErrUnavailable, err)
	}
	go forwardStderr(stderr)

	d.cmd = cmd
	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)
	d.started = true

	if err := d.awaitReady(ctx); err != nil {
		d.kill()
		d.shutdown()
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	log.Info().Str("script", scriptPath).Int("pid", cmd.Process.Pid).Msg("classifier service started")
	return nil
}

// awaitReady reads the service's first line, {"ready":true} or {"error":"..."}.
func (d *MediaPipeDetector) awaitReady(ctx context.Context) error {
	stdout := d.stdout
	done := make(chan exchange, 1)
	go func() {
		line, err := stdout.ReadBytes('\n')
		done <- exchange{line: line, err: err}
	}()

	var ex exchange
	select {
	case ex = <-done:
	case <-ctx.Done():
		d.kill()
		<-done
		return ctx.Err()
	}
	if ex.err != nil {
		return fmt.Errorf("read handshake: %w", ex.err)
	}

	var hello struct {
		Ready bool   `json:"ready"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(ex.line, &hello); err != nil {
		return fmt.Errorf("parse handshake: %w", err)
	}
	if !hello.Ready {
		return fmt.Errorf("service not ready: %s", hello.Error)
	}
	return nil
}

func forwardStderr(r io.Reader) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		log.Debug().Str("source", "classifier").Msg(sc.Text())
	}
}

func (d *MediaPipeDetector) kill() {
	if d.cmd != nil && d.cmd.Process != nil {
		d.cmd.Process.Kill()
	}
}

func (d *MediaPipeDetector) shutdown() error {
	if !d.started {
		return nil
	}

	if d.idleTimer != nil {
		d.idleTimer.Stop()
		d.idleTimer = nil
	}

	if d.stdin != nil {
		d.stdin.Close()
	}

	err := d.cmd.Wait()
	d.started = false
	d.cmd = nil
	d.stdin = nil
	d.stdout = nil

	return err
}

func (d *MediaPipeDetector) resetIdleTimer() {
	if d.config.IdleTimeoutSec <= 0 {
		return
	}
	if d.idleTimer != nil {
		d.idleTimer.Stop()
	}
	d.idleTimer = time.AfterFunc(time.Duration(d.config.IdleTimeoutSec)*time.Second, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		log.Debug().Msg("classifier idle, stopping service")
		d.shutdown()
	})
}

func findMediaPipeScript() string {
	var execDir string
	if execPath, err := os.Executable(); err == nil {
		execDir = filepath.Dir(execPath)
	}

	return firstExisting(
		filepath.Join("scripts", scriptName),
		filepath.Join("..", "scripts", scriptName),
		filepath.Join(execDir, "scripts", scriptName),
		filepath.Join(os.Getenv("HOME"), ".airpointer", "scripts", scriptName),
	)
}

// findVenvPython looks for a Python interpreter in a virtual environment.
func findVenvPython() string {
	var execDir string
	if execPath, err := os.Executable(); err == nil {
		execDir = filepath.Dir(execPath)
	}

	return firstExisting(
		"venv/bin/python",
		"../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".airpointer/venv/bin/python"),
	)
}

func firstExisting(candidates ...string) string {
	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if abs, err := filepath.Abs(path); err == nil {
			return abs
		}
		return path
	}
	return ""
}
