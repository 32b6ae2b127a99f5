package core

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"pkt.systems/blockdeck/schema"
	"pkt.systems/pslog"
)

// launchCommand builds the java process for a server definition. Package
// variable so tests can substitute a harmless process.
var launchCommand = func(def schema.ServerDef) *exec.Cmd {
	cmd := exec.Command(def.JavaPath, buildJavaArgs(def)...)
	cmd.Dir = def.Dir
	return cmd
}

func buildJavaArgs(def schema.ServerDef) []string {
	args := make([]string, 0, 4+len(def.JVMArgs))
	if def.MinRAM != "" {
		args = append(args, fmt.Sprintf("-Xms%s", def.MinRAM))
	}
	if def.MaxRAM != "" {
		args = append(args, fmt.Sprintf("-Xmx%s", def.MaxRAM))
	}
	args = append(args, def.JVMArgs...)
	args = append(args, "-jar", def.JarPath, "nogui")
	return args
}

// ensureEULA writes the Mojang EULA acceptance the server refuses to boot
// without.
func ensureEULA(dir string) error {
	path := filepath.Join(dir, "eula.txt")
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return os.WriteFile(path, []byte("eula=true\n"), 0o644)
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[A-Za-z]`)

func cleanLine(line string) string {
	return ansiPattern.ReplaceAllString(line, "")
}

// streamOutput reads process output line by line into the instance buffer
// and the event sink. Lines are delivered in read order; the sink is
// invoked outside the service lock.
func (s *service) streamOutput(r io.Reader, inst *instance, prefix string, log pslog.Logger) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := cleanLine(scanner.Text())
		if prefix != "" {
			line = fmt.Sprintf("[%s] %s", prefix, line)
		}
		s.appendOutput(inst, line)
	}
	if err := scanner.Err(); err != nil {
		log.Warn("console stream ended", "err", err)
		s.appendOutput(inst, fmt.Sprintf("stream error: %v", err))
	}
}

func (s *service) appendOutput(inst *instance, lines ...string) {
	s.mu.Lock()
	inst.buffer.Append(lines...)
	s.mu.Unlock()
	if s.sink != nil {
		s.sink.OnOutput(schema.OutputEvent{
			ServerID: inst.def.ID,
			Lines:    lines,
		})
	}
}

// watchExit waits for the process, records the exit, and emits the
// stopped transition.
func (s *service) watchExit(inst *instance, log pslog.Logger) {
	err := inst.cmd.Wait()

	s.mu.Lock()
	previous := inst.state
	inst.state = schema.RunStateStopped
	inst.stdin = nil
	if err != nil {
		inst.exitInfo = fmt.Sprintf("process exited: %v", err)
	} else {
		inst.exitInfo = "process exited cleanly"
	}
	exitInfo := inst.exitInfo
	done := inst.done
	inst.done = nil
	snapshot := inst.Snapshot()
	s.mu.Unlock()

	s.appendOutput(inst, exitInfo)
	log.Info("server process exited", "err", err)
	if s.sink != nil {
		s.sink.OnServerEvent(schema.ServerEvent{
			Type:     schema.ServerEventState,
			Server:   snapshot,
			Previous: previous,
		})
	}
	if done != nil {
		close(done)
	}
}

// requestStop asks the process to shut down via the console, escalating
// to a kill after the timeout.
func (s *service) requestStop(inst *instance, timeout time.Duration, log pslog.Logger) {
	s.mu.Lock()
	stdin := inst.stdin
	done := inst.done
	cmd := inst.cmd
	s.mu.Unlock()

	if stdin != nil {
		if _, err := io.WriteString(stdin, "stop\n"); err != nil {
			log.Warn("stop command write failed", "err", err)
		}
	}
	if done == nil {
		return
	}
	select {
	case <-done:
		return
	case <-time.After(timeout):
	}
	log.Warn("graceful stop timed out, killing process")
	if cmd != nil && cmd.Process != nil {
		if err := cmd.Process.Kill(); err != nil && !strings.Contains(err.Error(), "already finished") {
			log.Warn("process kill failed", "err", err)
		}
	}
	<-done
}
