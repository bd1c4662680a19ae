// File: internal/handlers/app.go
package handlers

import (
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/handsfree/api/schemas"
	"github.com/xkilldash9x/handsfree/internal/config"
)

const methodProcessManager = "process_manager"

// NewAppHandlers returns the application lifecycle handler group. The safety
// config's blocklist is enforced before any launch.
func NewAppHandlers(logger *zap.Logger, pm schemas.ProcessManager, safety config.SafetyConfig) []schemas.ActionHandler {
	logger = logger.Named("handlers").With(zap.String("group", "app"))
	blocked := make(map[string]struct{}, len(safety.BlockedApps))
	for _, app := range safety.BlockedApps {
		blocked[strings.ToLower(app)] = struct{}{}
	}
	return []schemas.ActionHandler{
		&launchAppHandler{pm: pm, logger: logger, blocked: blocked},
		&terminateAppHandler{pm: pm, logger: logger},
	}
}

// executableName strips any leading path from a launch target. Targets may
// carry Windows or POSIX separators no matter what the host OS is, so this
// splits on both instead of using filepath.Base.
func executableName(target string) string {
	if i := strings.LastIndexAny(target, `/\`); i >= 0 {
		target = target[i+1:]
	}
	return strings.ToLower(target)
}

type launchParams struct {
	Target string   `mapstructure:"target"`
	Args   []string `mapstructure:"args"`
}

// launchAppHandler starts an application and remembers its PID for later
// steps of the same plan.
type launchAppHandler struct {
	schemas.BaseHandler
	pm      schemas.ProcessManager
	logger  *zap.Logger
	blocked map[string]struct{}
}

func (h *launchAppHandler) ActionName() string { return "launch_app" }

func (h *launchAppHandler) SupportsVerification() bool { return true }

func (h *launchAppHandler) Validate(params schemas.Params) (bool, string) {
	var p launchParams
	if err := decode(params, &p); err != nil {
		return false, err.Error()
	}
	if p.Target == "" {
		return false, "target is required"
	}
	// Match on the bare executable name so a path prefix cannot dodge the
	// blocklist.
	base := executableName(p.Target)
	if _, hit := h.blocked[base]; hit {
		return false, "application is blocked by safety policy: " + base
	}
	return true, ""
}

func (h *launchAppHandler) Execute(params schemas.Params, execCtx schemas.ExecContext) schemas.ActionResult {
	var p launchParams
	if err := decode(params, &p); err != nil {
		return schemas.Failure(err.Error())
	}
	proc, err := h.pm.Launch(p.Target, p.Args...)
	if err != nil {
		return failf("failed to launch %q: %v", p.Target, err)
	}
	execCtx.SetVariable("launched_pid", proc.PID)
	h.logger.Info("launched application",
		zap.String("target", p.Target),
		zap.Int("pid", proc.PID))
	return schemas.ActionResult{
		Success:    true,
		MethodUsed: methodProcessManager,
		Data: schemas.Params{
			"pid":  proc.PID,
			"name": proc.Name,
		},
	}
}

func (h *launchAppHandler) Verify(_ schemas.Params, _ schemas.ExecContext, result schemas.ActionResult) schemas.VerifyResult {
	pid, ok := result.Data["pid"].(int)
	if !ok {
		return schemas.VerifyResult{Confidence: 0.2, Reason: "no PID recorded for launch"}
	}
	if h.pm.IsRunning(pid) {
		return schemas.VerifyResult{Verified: true, Confidence: 0.95, Reason: "process is running"}
	}
	return schemas.VerifyResult{Confidence: 0.9, Reason: "process exited immediately"}
}

type terminateParams struct {
	PID  int    `mapstructure:"pid"`
	Name string `mapstructure:"name"`
}

// terminateAppHandler stops a process by PID or by name lookup.
type terminateAppHandler struct {
	schemas.BaseHandler
	pm     schemas.ProcessManager
	logger *zap.Logger
}

func (h *terminateAppHandler) ActionName() string { return "terminate_app" }

func (h *terminateAppHandler) Validate(params schemas.Params) (bool, string) {
	var p terminateParams
	if err := decode(params, &p); err != nil {
		return false, err.Error()
	}
	if p.PID <= 0 && p.Name == "" {
		return false, "either pid or name is required"
	}
	return true, ""
}

func (h *terminateAppHandler) Execute(params schemas.Params, _ schemas.ExecContext) schemas.ActionResult {
	var p terminateParams
	if err := decode(params, &p); err != nil {
		return schemas.Failure(err.Error())
	}
	pid := p.PID
	if pid <= 0 {
		proc, err := h.pm.FindProcess(p.Name)
		if err != nil {
			return failf("process %q not found: %v", p.Name, err)
		}
		pid = proc.PID
	}
	if err := h.pm.Terminate(pid); err != nil {
		return failf("failed to terminate pid %d: %v", pid, err)
	}
	h.logger.Info("terminated process", zap.Int("pid", pid))
	return schemas.ActionResult{
		Success:    true,
		MethodUsed: methodProcessManager,
		Data:       schemas.Params{"pid": pid},
	}
}
