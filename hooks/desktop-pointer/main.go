// Command desktop-pointer is a hook that applies click and scroll events to
// the desktop. It uses xdotool on Linux and cliclick plus AppleScript on
// macOS.
package main

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
)

type request struct {
	Event  string          `json:"event"`
	X      float64         `json:"x"`
	Y      float64         `json:"y"`
	Delta  float64         `json:"delta"`
	Config json.RawMessage `json:"config"`
}

type response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type options struct {
	ScrollStepPx float64 `json:"scroll_step_px"`
}

func main() {
	var req request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		reply(fmt.Errorf("decode request: %w", err))
		return
	}

	opts := options{ScrollStepPx: 40}
	if len(req.Config) > 0 {
		json.Unmarshal(req.Config, &opts)
	}

	var err error
	switch req.Event {
	case "click":
		err = click(req.X, req.Y)
	case "scroll":
		err = scroll(req.Delta, opts.ScrollStepPx)
	default:
		err = fmt.Errorf("unsupported event %q", req.Event)
	}
	reply(err)
}

func reply(err error) {
	resp := response{Success: err == nil}
	if err != nil {
		resp.Error = err.Error()
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}

func click(x, y float64) error {
	w, h, err := screenSize()
	if err != nil {
		return err
	}
	px := strconv.Itoa(int(math.Round(x * float64(w))))
	py := strconv.Itoa(int(math.Round(y * float64(h))))

	if runtime.GOOS == "darwin" {
		return run("cliclick", "c:"+px+","+py)
	}
	return run("xdotool", "mousemove", px, py, "click", "1")
}

// scroll converts a pixel delta into wheel steps. Positive deltas scroll
// the page down.
func scroll(delta, step float64) error {
	if step <= 0 {
		step = 40
	}
	n := int(math.Round(math.Abs(delta) / step))
	if n == 0 {
		return nil
	}

	if runtime.GOOS == "darwin" {
		key := "125" // down arrow
		if delta < 0 {
			key = "126"
		}
		script := fmt.Sprintf(`tell application "System Events" to repeat %d times
	key code %s
end repeat`, n, key)
		return run("osascript", "-e", script)
	}

	button := "5"
	if delta < 0 {
		button = "4"
	}
	return run("xdotool", "click", "--repeat", strconv.Itoa(n), button)
}

func screenSize() (int, int, error) {
	if runtime.GOOS == "darwin" {
		out, err := exec.Command("osascript", "-e",
			`tell application "Finder" to get bounds of window of desktop`).Output()
		if err != nil {
			return 0, 0, fmt.Errorf("screen size: %w", err)
		}
		// "0, 0, 1440, 900"
		parts := strings.Split(strings.TrimSpace(string(out)), ", ")
		if len(parts) != 4 {
			return 0, 0, fmt.Errorf("screen size: unexpected %q", out)
		}
		w, _ := strconv.Atoi(parts[2])
		h, _ := strconv.Atoi(parts[3])
		return w, h, nil
	}

	out, err := exec.Command("xdotool", "getdisplaygeometry").Output()
	if err != nil {
		return 0, 0, fmt.Errorf("screen size: %w", err)
	}
	fields := strings.Fields(string(out))
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("screen size: unexpected %q", out)
	}
	w, _ := strconv.Atoi(fields[0])
	h, _ := strconv.Atoi(fields[1])
	return w, h, nil
}

func run(name string, args ...string) error {
	out, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}
