// File: internal/desktop/desktop.go
// Description: Simulated desktop drivers. They model windows, processes and
// input against in-memory state so plans can be exercised end to end without
// touching a real session. Platform bindings implement the same interfaces.
package desktop

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/handsfree/api/schemas"
)

// Simulator implements every OS driver interface against an in-memory model
// of a desktop session. All methods are safe for concurrent use.
type Simulator struct {
	logger *zap.Logger

	mu         sync.Mutex
	nextHandle int64
	nextPID    int
	windows    map[int64]*schemas.WindowInfo
	processes  map[int]*schemas.ProcessInfo
	elements   map[string]schemas.ElementReference
	foreground int64
	actions    []string
}

// NewSimulator creates an empty simulated session.
func NewSimulator(logger *zap.Logger) *Simulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Simulator{
		logger:     logger.Named("desktop_sim"),
		nextHandle: 1000,
		nextPID:    5000,
		windows:    make(map[int64]*schemas.WindowInfo),
		processes:  make(map[int]*schemas.ProcessInfo),
		elements:   make(map[string]schemas.ElementReference),
	}
}

// AddWindow seeds a window into the session and returns its handle.
func (s *Simulator) AddWindow(title, processName string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextHandle++
	s.nextPID++
	w := &schemas.WindowInfo{
		Handle:      s.nextHandle,
		Title:       title,
		ProcessName: processName,
		PID:         s.nextPID,
		Width:       1280,
		Height:      720,
		IsVisible:   true,
	}
	s.windows[w.Handle] = w
	s.processes[w.PID] = &schemas.ProcessInfo{
		PID:       w.PID,
		Name:      processName,
		Status:    "running",
		CreatedAt: time.Now(),
	}
	if s.foreground == 0 {
		s.foreground = w.Handle
	}
	return w.Handle
}

// AddElement seeds a findable UI element.
func (s *Simulator) AddElement(name string, box schemas.BoundingBox) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elements[strings.ToLower(name)] = schemas.ElementReference{
		Name:        name,
		Source:      "simulated",
		BoundingBox: box,
		Confidence:  1.0,
		FoundAt:     time.Now(),
	}
}

// Actions returns the chronological log of everything the simulator did.
func (s *Simulator) Actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.actions))
	copy(out, s.actions)
	return out
}

func (s *Simulator) record(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	s.actions = append(s.actions, line)
	s.logger.Info("simulated action", zap.String("action", line))
}

// -- schemas.WindowManager --

func (s *Simulator) ForegroundWindow() (*schemas.WindowInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.windows[s.foreground]; ok {
		cp := *w
		return &cp, nil
	}
	return nil, fmt.Errorf("no foreground window")
}

func (s *Simulator) FindWindow(query string) (*schemas.WindowInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := strings.ToLower(query)
	for _, w := range s.windows {
		if strings.Contains(strings.ToLower(w.Title), q) ||
			strings.Contains(strings.ToLower(w.ProcessName), q) {
			cp := *w
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("no window matching %q", query)
}

func (s *Simulator) WindowByHandle(handle int64) (*schemas.WindowInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.windows[handle]; ok {
		cp := *w
		return &cp, nil
	}
	return nil, fmt.Errorf("no window with handle %d", handle)
}

func (s *Simulator) FocusWindow(handle int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.windows[handle]
	if !ok {
		return fmt.Errorf("no window with handle %d", handle)
	}
	s.foreground = handle
	w.IsMinimized = false
	s.record("focus_window %d (%s)", handle, w.Title)
	return nil
}

func (s *Simulator) MinimizeWindow(handle int64) error {
	return s.setWindowState(handle, "minimize_window", func(w *schemas.WindowInfo) {
		w.IsMinimized = true
		w.IsMaximized = false
	})
}

func (s *Simulator) MaximizeWindow(handle int64) error {
	return s.setWindowState(handle, "maximize_window", func(w *schemas.WindowInfo) {
		w.IsMaximized = true
		w.IsMinimized = false
	})
}

func (s *Simulator) RestoreWindow(handle int64) error {
	return s.setWindowState(handle, "restore_window", func(w *schemas.WindowInfo) {
		w.IsMaximized = false
		w.IsMinimized = false
	})
}

func (s *Simulator) setWindowState(handle int64, action string, apply func(*schemas.WindowInfo)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.windows[handle]
	if !ok {
		return fmt.Errorf("no window with handle %d", handle)
	}
	apply(w)
	s.record("%s %d (%s)", action, handle, w.Title)
	return nil
}

func (s *Simulator) CloseWindow(handle int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.windows[handle]
	if !ok {
		return fmt.Errorf("no window with handle %d", handle)
	}
	delete(s.windows, handle)
	if s.foreground == handle {
		s.foreground = 0
		for h := range s.windows {
			s.foreground = h
			break
		}
	}
	s.record("close_window %d (%s)", handle, w.Title)
	return nil
}

func (s *Simulator) WindowExists(handle int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.windows[handle]
	return ok
}

// -- schemas.ProcessManager --

func (s *Simulator) Launch(target string, args ...string) (*schemas.ProcessInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextPID++
	proc := &schemas.ProcessInfo{
		PID:       s.nextPID,
		Name:      target,
		Status:    "running",
		CreatedAt: time.Now(),
	}
	s.processes[proc.PID] = proc

	// A launched app gets a window so follow-up steps can find it.
	s.nextHandle++
	w := &schemas.WindowInfo{
		Handle:      s.nextHandle,
		Title:       target,
		ProcessName: target,
		PID:         proc.PID,
		Width:       1280,
		Height:      720,
		IsVisible:   true,
	}
	s.windows[w.Handle] = w
	s.foreground = w.Handle

	s.record("launch %s %s (pid %d)", target, strings.Join(args, " "), proc.PID)
	cp := *proc
	return &cp, nil
}

func (s *Simulator) Terminate(pid int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	proc, ok := s.processes[pid]
	if !ok {
		return fmt.Errorf("no process with pid %d", pid)
	}
	delete(s.processes, pid)
	for h, w := range s.windows {
		if w.PID == pid {
			delete(s.windows, h)
			if s.foreground == h {
				s.foreground = 0
			}
		}
	}
	s.record("terminate %s (pid %d)", proc.Name, pid)
	return nil
}

func (s *Simulator) FindProcess(name string) (*schemas.ProcessInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := strings.ToLower(name)
	for _, p := range s.processes {
		if strings.Contains(strings.ToLower(p.Name), q) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("no process matching %q", name)
}

func (s *Simulator) IsRunning(pid int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.processes[pid]
	return ok
}

// -- schemas.InputDriver --

func (s *Simulator) TypeText(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("type_text (%d chars)", len(text))
	return nil
}

func (s *Simulator) Hotkey(keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("hotkey %s", strings.Join(keys, "+"))
	return nil
}

func (s *Simulator) Click(x, y int, button string, clicks int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("click %d,%d %s x%d", x, y, button, clicks)
	return nil
}

func (s *Simulator) Scroll(dx, dy int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("scroll %d,%d", dx, dy)
	return nil
}

// -- schemas.Navigator --

func (s *Simulator) OpenURL(url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("open_url %s", url)
	return nil
}

// -- schemas.ElementFinder --

func (s *Simulator) FindElement(query string, _ *schemas.WindowInfo) (*schemas.ElementReference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ref, ok := s.elements[strings.ToLower(query)]; ok {
		ref.FoundAt = time.Now()
		return &ref, nil
	}
	return nil, fmt.Errorf("no element matching %q", query)
}

var (
	_ schemas.WindowManager  = (*Simulator)(nil)
	_ schemas.ProcessManager = (*Simulator)(nil)
	_ schemas.InputDriver    = (*Simulator)(nil)
	_ schemas.Navigator      = (*Simulator)(nil)
	_ schemas.ElementFinder  = (*Simulator)(nil)
)
