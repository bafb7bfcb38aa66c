package instance

import (
	"regexp"
	"strings"

	"github.com/jg-phare/mcslauncherd/internal/broadcast"
)

// Status is an instance's lifecycle state.
type Status int

const (
	Stopped Status = iota
	Starting
	Running
	Stopping
	Crashed
)

func (s Status) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Crashed:
		return "crashed"
	default:
		return "unknown"
	}
}

// Strategy encapsulates the classification-specific behavior of an
// instance: how it reacts to process start/output, and how it is stopped.
type Strategy interface {
	OnProcessStart(pub *broadcast.Channel[Status])
	OnLine(line string, pub *broadcast.Channel[Status])
	Stop(inst *Instance) error
}

// universalStrategy treats the child process as an opaque program: no log
// parsing, stop means terminate the process.
type universalStrategy struct{}

var Universal Strategy = universalStrategy{}

func (universalStrategy) OnProcessStart(pub *broadcast.Channel[Status]) {
	pub.Send(Running)
}

func (universalStrategy) OnLine(string, *broadcast.Channel[Status]) {}

func (universalStrategy) Stop(inst *Instance) error {
	h := inst.Process()
	if h == nil {
		return errNotRunning
	}
	return h.Term()
}

var donePattern = regexp.MustCompile(`Done \(\d+\.\d{1,3}s\)! For help, type ["']help["']$`)

// minecraftStrategy understands vanilla/Forge/Paper-style server console
// output well enough to classify status transitions.
type minecraftStrategy struct{}

var Minecraft Strategy = minecraftStrategy{}

func (minecraftStrategy) OnProcessStart(pub *broadcast.Channel[Status]) {
	pub.Send(Starting)
}

func (minecraftStrategy) OnLine(line string, pub *broadcast.Channel[Status]) {
	trimmed := strings.TrimRight(line, " \t\r\n")
	switch {
	case donePattern.MatchString(trimmed):
		pub.Send(Running)
	case strings.Contains(trimmed, "Stopping the server"):
		pub.Send(Stopping)
	case strings.Contains(trimmed, "Minecraft has crashed"):
		pub.Send(Crashed)
	}
}

func (minecraftStrategy) Stop(inst *Instance) error {
	return inst.Send("stop")
}
