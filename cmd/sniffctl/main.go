// sniffctl - interactive command-surface front-end

package main

import (
	"fmt"
	"log"
	"os"
	"syscall"

	"golang.org/x/term"

	sniffer "github.com/intuitionamiga/guestsniffer"
)

// readLine reads one raw-mode line from fd, translating CR to a line
// terminator and DEL to backspace, echoing to stdout as it goes. Raw mode
// is required because the engine's command surface does its own argument
// parsing and wants to see a clean, already-edited line.
func readLine(fd int) (string, bool) {
	var line []byte
	buf := make([]byte, 1)
	for {
		n, err := syscall.Read(fd, buf)
		if n == 0 || err != nil {
			return "", false
		}
		b := buf[0]
		switch {
		case b == '\r' || b == '\n':
			fmt.Print("\r\n")
			return string(line), true
		case b == 0x7F || b == 0x08:
			if len(line) > 0 {
				line = line[:len(line)-1]
				fmt.Print("\b \b")
			}
		case b == 0x03: // Ctrl-C
			return "", false
		default:
			line = append(line, b)
			fmt.Printf("%c", b)
		}
	}
}

func main() {
	logger := log.New(os.Stderr, "sniffctl: ", log.LstdFlags)

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		logger.Fatalf("failed to set raw terminal mode: %v", err)
	}
	defer term.Restore(fd, oldState)

	mem := &notWiredMemory{}
	registry := &notWiredRegistry{}
	engine := sniffer.NewEngine(mem, registry, sniffer.DefaultConfig(), logger)

	fmt.Print("sniffctl> ")
	for {
		line, ok := readLine(fd)
		if !ok {
			return
		}
		cmd := sniffer.ParseCommand(line)
		if cmd.Verb == "" {
			fmt.Print("sniffctl> ")
			continue
		}
		if cmd.Verb == "quit" || cmd.Verb == "exit" {
			return
		}
		if !engine.Exec(cmd.Verb, cmd.Arg) {
			fmt.Printf("unrecognized command: %s\r\n", cmd.Verb)
		}
		fmt.Print("sniffctl> ")
	}
}

// notWiredMemory/notWiredRegistry are stand-ins for a real emulator host's
// implementations of GuestMemory/ProcessRegistry. sniffctl is a standalone
// front-end over the command surface: every guest range reads as invalid,
// no cores are exposed, and no snapshot store is loaded. A host embedding
// the engine directly supplies its own implementations instead of these.
type notWiredMemory struct{}

func (notWiredMemory) IsValidRange(pid, addr, size uint64) bool  { return false }
func (notWiredMemory) Read(pid, addr, size uint64) []byte        { return nil }
func (notWiredMemory) Write(pid, addr uint64, data []byte)       {}

type notWiredRegistry struct{}

func (notWiredRegistry) Lookup(pid uint64) (sniffer.Process, bool)    { return sniffer.Process{}, false }
func (notWiredRegistry) Core(coreIndex int) (sniffer.ArmCore, bool)   { return nil, false }
func (notWiredRegistry) CoreCount() int                               { return 0 }
