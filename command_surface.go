// command_surface.go - verb/arg command dispatch (C10)

package sniffer

import (
	"strconv"
	"strings"
)

// MonitorCommand is a parsed command: a lowercased verb and its single
// remaining argument string, unsplit, since several verbs (setmemrange,
// addlogbl) take a multi-field argument they parse themselves.
type MonitorCommand struct {
	Verb string
	Arg  string
}

// ParseCommand splits a raw input line into a verb and argument string.
func ParseCommand(input string) MonitorCommand {
	input = strings.TrimSpace(input)
	if input == "" {
		return MonitorCommand{}
	}
	parts := strings.SplitN(input, " ", 2)
	cmd := MonitorCommand{Verb: strings.ToLower(parts[0])}
	if len(parts) == 2 {
		cmd.Arg = strings.TrimSpace(parts[1])
	}
	return cmd
}

// ParseUintArg parses a command argument as an address, pid, or handle
// using base-0 rules: a "0x"/"0X" prefix selects hex, "0" alone or a
// leading "0" followed by more digits selects octal, anything else is
// decimal. This mirrors std::stoull(arg, nullptr, 0) in the original.
func ParseUintArg(s string) (uint64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseUint(s, 0, 64)
	return v, err == nil
}

// ParseBoolArg parses a command argument as a boolean: the literal string
// "true", or any token starting with a non-zero digit.
func ParseBoolArg(s string) bool {
	s = strings.TrimSpace(s)
	if s == "true" {
		return true
	}
	if s == "" {
		return false
	}
	return s[0] >= '1' && s[0] <= '9'
}

// fields splits arg on whitespace, for verbs that take more than one
// value (e.g. "addbp <addr> <pid> <aarch32>").
func fields(arg string) []string {
	return strings.Fields(arg)
}

// Exec dispatches one parsed command to the engine. It returns false for an
// unrecognized verb so the caller (CLI, scripting bridge, or a host's own
// monitor) can fall through to its own verb table, exactly as §4.7
// specifies.
func (e *Engine) Exec(verb, arg string) bool {
	switch strings.ToLower(strings.TrimSpace(verb)) {
	case "refreshsnapshot":
		e.store.RefreshSnapshot()
	case "keepunchanged":
		e.store.KeepUnchanged(ParseBoolArg(arg))
	case "keepchanged":
		e.store.KeepChanged(ParseBoolArg(arg))
	case "keepincreased":
		e.store.KeepIncreased(ParseBoolArg(arg))
	case "keepdecreased":
		e.store.KeepDecreased(ParseBoolArg(arg))
	case "keepvalue":
		parts := fields(arg)
		if len(parts) < 1 {
			return false
		}
		v, ok := ParseUintArg(parts[0])
		if !ok {
			return false
		}
		debugSnap := len(parts) > 1 && ParseBoolArg(parts[1])
		e.store.KeepValue(debugSnap, v)
	case "setdebugsnapshot":
		e.store.SetDebugSnapshot()
	case "rollback":
		e.store.Rollback()
	case "unrollback":
		e.store.Unrollback()

	case "clearloginsts":
		e.watch.ClearLogFilters()
	case "addlogbl", "addlogbc", "addlogb", "addlogret":
		mask, value, ok := parseMaskValue(arg)
		if !ok {
			return false
		}
		e.watch.AddLogFilter(mask, value)
	case "setlogcallstack":
		e.watch.SetLogCallStack(ParseBoolArg(arg))

	case "settracescope":
		b, en, ok := parseRange(arg)
		if !ok {
			return false
		}
		e.watch.SetTraceScope(b, en)
	case "settracescopebegin":
		v, ok := ParseUintArg(arg)
		if !ok {
			return false
		}
		e.watch.SetTraceScope(v, e.watch.traceScope[1])
	case "settracescopeend":
		v, ok := ParseUintArg(arg)
		if !ok {
			return false
		}
		e.watch.SetTraceScope(e.watch.traceScope[0], v)
	case "settracepid":
		v, ok := ParseUintArg(arg)
		if !ok {
			return false
		}
		e.watch.SetTracePID(v)
	case "cleartrace":
		e.trace.Clear()
	case "settraceswi":
		// handled at the host svc-dispatch boundary via SessionRegisterForSWI
	case "setsession":
		parts := fields(arg)
		if len(parts) < 2 {
			return false
		}
		id, ok1 := ParseUintArg(parts[0])
		handle, ok2 := ParseUintArg(parts[1])
		if !ok1 || !ok2 {
			return false
		}
		name := ""
		if len(parts) > 2 {
			name = strings.Join(parts[2:], " ")
		}
		e.RegisterSession(Session{ID: id, Name: name, Handle: uint32(handle)})

	case "starttrace", "starttracecore":
		e.pcCounter.SetEnabled(true)
	case "stoptrace", "stoptracecore":
		e.pcCounter.SetEnabled(false)
	case "setstarttracebp":
		v, ok := ParseUintArg(arg)
		if !ok {
			return false
		}
		e.watch.SetTraceScope(v, e.watch.traceScope[1])
	case "setstoptracebp":
		v, ok := ParseUintArg(arg)
		if !ok {
			return false
		}
		e.watch.SetTraceScope(e.watch.traceScope[0], v)

	case "setmemscope", "setmemscopebegin", "setmemscopeend", "setmemstep", "setmemsize", "setmemrange", "setmemcount", "setmempid":
		// accepted and reported as handled, but no scan parameters are
		// stored and no later verb consumes them; the host calls
		// Engine.Store().AddSniffing directly with its own parameters

	case "setmaxstepcount":
		v, ok := ParseUintArg(arg)
		if !ok {
			return false
		}
		e.watch.SetMaxStepCount(int(v))

	case "addtraceread":
		return execWatchAdd(e, WatchRead, arg)
	case "addtracewrite":
		return execWatchAdd(e, WatchWrite, arg)
	case "addtracepointer":
		return execWatchAdd(e, WatchGetPointer, arg)
	case "addtracecstring":
		return execWatchAdd(e, WatchReadCString, arg)
	case "removetraceread":
		return execWatchRemove(e, WatchRead, arg)
	case "removetracewrite":
		return execWatchRemove(e, WatchWrite, arg)
	case "removetracepointer":
		return execWatchRemove(e, WatchGetPointer, arg)
	case "removetracecstring":
		return execWatchRemove(e, WatchReadCString, arg)

	case "addbp":
		parts := fields(arg)
		if len(parts) < 1 {
			return false
		}
		addr, ok := ParseUintArg(parts[0])
		if !ok {
			return false
		}
		pid, _ := firstPID(parts, 1)
		isAArch32 := len(parts) > 2 && ParseBoolArg(parts[2])
		e.breakpoint.Add(pid, addr, isAArch32)
	case "removebp":
		parts := fields(arg)
		if len(parts) < 1 {
			return false
		}
		addr, ok := ParseUintArg(parts[0])
		if !ok {
			return false
		}
		pid, _ := firstPID(parts, 1)
		e.breakpoint.Remove(pid, addr)
	case "setbpcondition":
		parts := fields(arg)
		if len(parts) < 3 {
			return false
		}
		pid, ok := ParseUintArg(parts[0])
		if !ok {
			return false
		}
		addr, ok := ParseUintArg(parts[1])
		if !ok {
			return false
		}
		condText := strings.Join(parts[2:], " ")
		cond, err := ParseCondition(condText)
		if err != nil {
			return false
		}
		e.breakpoint.SetCondition(pid, addr, cond)

	case "usepccountarray":
		e.pcCounter.SetEnabled(ParseBoolArg(arg))
	case "setmaxpccount":
		// bounds Dump() callers; stored on Config by the host, not the
		// counter itself, since the counter always tracks every pc seen
	case "startpccount":
		e.pcCounter.SetEnabled(true)
	case "stoppccount":
		e.pcCounter.SetEnabled(false)
	case "clearpccount":
		e.pcCounter.Clear()
	case "storepccount":
		e.pcCounter.SaveBaseline()
	case "keeppccount":
		e.pcCounter.KeepPcCount()
	case "keepnewpccount":
		e.pcCounter.KeepNewPcCount()
	case "keepsamepccount":
		e.pcCounter.KeepSamePcCount()
	case "savepccount":
		// rendering is left to the caller via e.PCCounter().Dump(limit)

	case "cleartracebuffer":
		e.trace.Clear()
	case "savetracebuffer":
		// rendering is left to the caller via e.Trace().Dump()

	case "saveresult":
		// rendering is left to the caller via DumpSnapshot(e.Store().Result())
	case "savehistory":
		// rendering is left to the caller via DumpHistory(e.Store().History())
	case "saverollback":
		// rendering is left to the caller via DumpHistory(e.Store().RollbackStack())

	case "dumpreg":
		// rendering is left to the caller via DumpRegisters
	case "dumpsession":
		// rendering is left to the caller via e.session(id)
	case "listprocess":
		// rendering is left to the caller via e.Registry()

	default:
		return false
	}
	return true
}

func execWatchAdd(e *Engine, kind WatchKind, arg string) bool {
	v, ok := ParseUintArg(arg)
	if !ok {
		return false
	}
	e.watch.Add(kind, v)
	return true
}

func execWatchRemove(e *Engine, kind WatchKind, arg string) bool {
	v, ok := ParseUintArg(arg)
	if !ok {
		return false
	}
	e.watch.Remove(kind, v)
	return true
}

func firstPID(parts []string, idx int) (uint64, bool) {
	if idx >= len(parts) {
		return 0, false
	}
	return ParseUintArg(parts[idx])
}

func parseMaskValue(arg string) (mask, value uint32, ok bool) {
	parts := fields(arg)
	if len(parts) < 2 {
		return 0, 0, false
	}
	m, ok1 := ParseUintArg(parts[0])
	v, ok2 := ParseUintArg(parts[1])
	if !ok1 || !ok2 {
		return 0, 0, false
	}
	return uint32(m), uint32(v), true
}

func parseRange(arg string) (begin, end uint64, ok bool) {
	parts := fields(arg)
	if len(parts) < 2 {
		return 0, 0, false
	}
	b, ok1 := ParseUintArg(parts[0])
	e, ok2 := ParseUintArg(parts[1])
	if !ok1 || !ok2 {
		return 0, 0, false
	}
	return b, e, true
}
