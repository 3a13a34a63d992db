// Package eventpipe accepts operator commands on a named pipe. It stands
// in for the GUI's buttons: manual scans, registration capture, device
// control and maintenance actions all arrive here as text lines.
package eventpipe

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"syscall"
	"unicode"
)

// Config holds configuration for the event pipe.
type Config struct {
	Path string `yaml:"path"` // Path to named pipe (e.g., "/tmp/attendd-cmd")
}

// Op identifies an operator command.
type Op string

const (
	OpScan       Op = "scan"       // manual token submission
	OpRegister   Op = "register"   // arm registration capture
	OpConnect    Op = "connect"    // open the reader device
	OpDisconnect Op = "disconnect" // close the reader device
	OpExport     Op = "export"     // dump attendance log to a file
	OpBackup     Op = "backup"     // raw copy of the database
	OpCleanup    Op = "cleanup"    // retention cleanup
	OpStats      Op = "stats"      // print dashboard counters and recent activity
	OpAddUser    Op = "adduser"    // register a person
	OpEditUser   Op = "edituser"   // rewrite a person's fields in place
	OpDelUser    Op = "deluser"    // delete a person and their history
	OpUsers      Op = "users"      // list registered persons
)

// PersonSpec carries the pipe-delimited person fields of an adduser or
// edituser command.
type PersonSpec struct {
	CardID     string
	Name       string
	Department string
	Position   string
}

// Command is one parsed operator command.
type Command struct {
	Op     Op
	Arg    string // token for scan, device for connect, path for export/backup
	Days   int    // retention window for cleanup
	ID     int64  // person row id for edituser/deluser
	Person PersonSpec
}

// Handler is called for each command received from the pipe.
type Handler func(Command)

// Pipe listens for commands on a named pipe.
type Pipe struct {
	path    string
	handler Handler
	ctx     context.Context
	cancel  context.CancelFunc
}

// New creates a Pipe. Returns nil if path is empty.
func New(cfg Config, handler Handler) (*Pipe, error) {
	if cfg.Path == "" {
		return nil, nil
	}

	os.Remove(cfg.Path)

	if err := syscall.Mkfifo(cfg.Path, 0666); err != nil {
		return nil, fmt.Errorf("create named pipe %s: %w", cfg.Path, err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pipe{
		path:    cfg.Path,
		handler: handler,
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Start begins listening for commands on the pipe.
// This should be called as a goroutine.
func (p *Pipe) Start() {
	log.Printf("Command pipe listening on %s", p.path)

	for {
		select {
		case <-p.ctx.Done():
			return
		default:
		}

		// Open blocks until a writer connects.
		file, err := os.OpenFile(p.path, os.O_RDONLY, 0)
		if err != nil {
			if p.ctx.Err() != nil {
				return
			}
			log.Printf("Command pipe open error: %v", err)
			continue
		}

		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			select {
			case <-p.ctx.Done():
				file.Close()
				return
			default:
			}

			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}

			cmd, err := ParseLine(line)
			if err != nil {
				log.Printf("Command pipe parse error: %v", err)
				continue
			}

			if p.handler != nil {
				p.handler(cmd)
			}
		}

		file.Close()
		// Writer closed the pipe, loop back to wait for the next one.
	}
}

// Close stops the listener and removes the pipe.
func (p *Pipe) Close() error {
	p.cancel()
	return os.Remove(p.path)
}

// ParseLine parses a command line.
// Command format:
//
//	scan <token>         - Submit a token as if it had been scanned
//	register             - Capture the next token into the registration form
//	connect [device]     - Open the reader (optionally overriding the device)
//	disconnect           - Close the reader
//	export <path>        - Dump the attendance log (.csv or .xlsx)
//	backup <path>        - Copy the database file
//	cleanup [days]       - Delete events older than <days> (default 30, minimum 1)
//	stats                - Print today's counters and recent activity
//	adduser <card>|<name>|<department>|<position>
//	                     - Register a person ("-" card = no card assigned yet)
//	edituser <id> <card>|<name>|<department>|<position>
//	                     - Rewrite a person's fields, keyed by row id
//	deluser <id>         - Delete a person and their attendance history
//	users                - List registered persons
func ParseLine(line string) (Command, error) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return Command{}, fmt.Errorf("empty command")
	}

	switch Op(strings.ToLower(parts[0])) {
	case OpScan:
		if len(parts) < 2 {
			return Command{}, fmt.Errorf("scan requires a token")
		}
		return Command{Op: OpScan, Arg: parts[1]}, nil

	case OpRegister:
		return Command{Op: OpRegister}, nil

	case OpConnect:
		cmd := Command{Op: OpConnect}
		if len(parts) > 1 {
			cmd.Arg = parts[1]
		}
		return cmd, nil

	case OpDisconnect:
		return Command{Op: OpDisconnect}, nil

	case OpExport:
		if len(parts) < 2 {
			return Command{}, fmt.Errorf("export requires a path")
		}
		return Command{Op: OpExport, Arg: parts[1]}, nil

	case OpBackup:
		if len(parts) < 2 {
			return Command{}, fmt.Errorf("backup requires a path")
		}
		return Command{Op: OpBackup, Arg: parts[1]}, nil

	case OpCleanup:
		cmd := Command{Op: OpCleanup, Days: 30}
		if len(parts) > 1 {
			days, err := strconv.Atoi(parts[1])
			if err != nil || days < 1 {
				return Command{}, fmt.Errorf("invalid cleanup days: %s", parts[1])
			}
			cmd.Days = days
		}
		return cmd, nil

	case OpStats:
		return Command{Op: OpStats}, nil

	case OpAddUser:
		spec, err := parseSpec(rest(line, 1))
		if err != nil {
			return Command{}, err
		}
		return Command{Op: OpAddUser, Person: spec}, nil

	case OpEditUser:
		if len(parts) < 3 {
			return Command{}, fmt.Errorf("edituser requires an id and a person spec")
		}
		id, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil || id < 1 {
			return Command{}, fmt.Errorf("invalid person id: %s", parts[1])
		}
		spec, err := parseSpec(rest(line, 2))
		if err != nil {
			return Command{}, err
		}
		return Command{Op: OpEditUser, ID: id, Person: spec}, nil

	case OpDelUser:
		if len(parts) < 2 {
			return Command{}, fmt.Errorf("deluser requires an id")
		}
		id, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil || id < 1 {
			return Command{}, fmt.Errorf("invalid person id: %s", parts[1])
		}
		return Command{Op: OpDelUser, ID: id}, nil

	case OpUsers:
		return Command{Op: OpUsers}, nil

	default:
		return Command{}, fmt.Errorf("unknown command: %s", parts[0])
	}
}

// rest returns the line with its first n whitespace-separated fields removed.
func rest(line string, n int) string {
	s := strings.TrimSpace(line)
	for ; n > 0; n-- {
		i := strings.IndexFunc(s, unicode.IsSpace)
		if i < 0 {
			return ""
		}
		s = strings.TrimSpace(s[i:])
	}
	return s
}

// parseSpec splits a pipe-delimited person spec. The card field may be "-"
// or empty for a person with no card assigned.
func parseSpec(s string) (PersonSpec, error) {
	var f [4]string
	for i, part := range strings.SplitN(s, "|", 4) {
		f[i] = strings.TrimSpace(part)
	}
	if f[0] == "-" {
		f[0] = ""
	}
	if f[1] == "" {
		return PersonSpec{}, fmt.Errorf("person spec requires a name: %q", s)
	}
	return PersonSpec{CardID: f[0], Name: f[1], Department: f[2], Position: f[3]}, nil
}
