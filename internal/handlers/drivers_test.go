// File: internal/handlers/drivers_test.go
// Recording fakes for the OS driver interfaces.
package handlers

import (
	"fmt"
	"time"

	"github.com/xkilldash9x/handsfree/api/schemas"
	"github.com/xkilldash9x/handsfree/internal/executor"
)

func newExecContext() *executor.Context {
	plan := schemas.NewPlan("direct", "handler test")
	return executor.NewContext(plan, schemas.Intent{Action: "test"}, executor.StalenessPolicy{})
}

type fakeWindowManager struct {
	windows    map[int64]*schemas.WindowInfo
	foreground int64
	calls      []string
	failWith   error
}

func newFakeWindowManager(windows ...*schemas.WindowInfo) *fakeWindowManager {
	wm := &fakeWindowManager{windows: map[int64]*schemas.WindowInfo{}}
	for _, w := range windows {
		wm.windows[w.Handle] = w
	}
	if len(windows) > 0 {
		wm.foreground = windows[0].Handle
	}
	return wm
}

func (f *fakeWindowManager) record(call string) error {
	f.calls = append(f.calls, call)
	return f.failWith
}

func (f *fakeWindowManager) ForegroundWindow() (*schemas.WindowInfo, error) {
	if w, ok := f.windows[f.foreground]; ok {
		return w, nil
	}
	return nil, fmt.Errorf("no foreground window")
}

func (f *fakeWindowManager) FindWindow(query string) (*schemas.WindowInfo, error) {
	for _, w := range f.windows {
		if w.Title == query {
			return w, nil
		}
	}
	return nil, fmt.Errorf("no window matching %q", query)
}

func (f *fakeWindowManager) WindowByHandle(handle int64) (*schemas.WindowInfo, error) {
	if w, ok := f.windows[handle]; ok {
		return w, nil
	}
	return nil, fmt.Errorf("no window with handle %d", handle)
}

func (f *fakeWindowManager) FocusWindow(handle int64) error {
	if err := f.record(fmt.Sprintf("focus:%d", handle)); err != nil {
		return err
	}
	f.foreground = handle
	return nil
}

func (f *fakeWindowManager) MinimizeWindow(handle int64) error {
	return f.record(fmt.Sprintf("minimize:%d", handle))
}

func (f *fakeWindowManager) MaximizeWindow(handle int64) error {
	return f.record(fmt.Sprintf("maximize:%d", handle))
}

func (f *fakeWindowManager) RestoreWindow(handle int64) error {
	return f.record(fmt.Sprintf("restore:%d", handle))
}

func (f *fakeWindowManager) CloseWindow(handle int64) error {
	if err := f.record(fmt.Sprintf("close:%d", handle)); err != nil {
		return err
	}
	delete(f.windows, handle)
	return nil
}

func (f *fakeWindowManager) WindowExists(handle int64) bool {
	_, ok := f.windows[handle]
	return ok
}

type fakeProcessManager struct {
	nextPID  int
	running  map[int]*schemas.ProcessInfo
	failWith error
}

func newFakeProcessManager() *fakeProcessManager {
	return &fakeProcessManager{nextPID: 1000, running: map[int]*schemas.ProcessInfo{}}
}

func (f *fakeProcessManager) Launch(target string, _ ...string) (*schemas.ProcessInfo, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.nextPID++
	proc := &schemas.ProcessInfo{PID: f.nextPID, Name: target, CreatedAt: time.Now()}
	f.running[proc.PID] = proc
	return proc, nil
}

func (f *fakeProcessManager) Terminate(pid int) error {
	if _, ok := f.running[pid]; !ok {
		return fmt.Errorf("no such process %d", pid)
	}
	delete(f.running, pid)
	return nil
}

func (f *fakeProcessManager) FindProcess(name string) (*schemas.ProcessInfo, error) {
	for _, p := range f.running {
		if p.Name == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no process named %q", name)
}

func (f *fakeProcessManager) IsRunning(pid int) bool {
	_, ok := f.running[pid]
	return ok
}

type fakeInputDriver struct {
	typed    []string
	hotkeys  [][]string
	clicks   []string
	scrolls  []string
	failWith error
}

func (f *fakeInputDriver) TypeText(text string) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.typed = append(f.typed, text)
	return nil
}

func (f *fakeInputDriver) Hotkey(keys ...string) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.hotkeys = append(f.hotkeys, keys)
	return nil
}

func (f *fakeInputDriver) Click(x, y int, button string, clicks int) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.clicks = append(f.clicks, fmt.Sprintf("%d,%d:%s:%d", x, y, button, clicks))
	return nil
}

func (f *fakeInputDriver) Scroll(dx, dy int) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.scrolls = append(f.scrolls, fmt.Sprintf("%d,%d", dx, dy))
	return nil
}

type fakeNavigator struct {
	opened   []string
	failWith error
}

func (f *fakeNavigator) OpenURL(url string) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.opened = append(f.opened, url)
	return nil
}

type fakeElementFinder struct {
	elements map[string]*schemas.ElementReference
	lookups  int
}

func newFakeElementFinder(elems ...*schemas.ElementReference) *fakeElementFinder {
	f := &fakeElementFinder{elements: map[string]*schemas.ElementReference{}}
	for _, e := range elems {
		f.elements[e.Name] = e
	}
	return f
}

func (f *fakeElementFinder) FindElement(query string, _ *schemas.WindowInfo) (*schemas.ElementReference, error) {
	f.lookups++
	if e, ok := f.elements[query]; ok {
		return e, nil
	}
	return nil, fmt.Errorf("no element matching %q", query)
}
