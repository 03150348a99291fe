package executor

import (
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
)

// Session is the per-run trading state. A fresh one is created for every
// triggered run, so exactly-once submission is a matter of isolation, not
// locking: nothing else ever sees this hasTraded flag.
type Session struct {
	ID         string
	Simulation bool
	TargetDate string

	hasTraded bool
	runLog    strings.Builder
}

func NewSession(simulation bool, targetDate string) *Session {
	return &Session{
		ID:         uuid.NewString()[:8],
		Simulation: simulation,
		TargetDate: targetDate,
	}
}

// Logf records a line in the run log and mirrors it to the process log with
// the session id prefixed.
func (s *Session) Logf(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	s.runLog.WriteString(line)
	s.runLog.WriteByte('\n')
	log.Printf("[%s] %s", s.ID, line)
}

// HasTraded reports whether this session already submitted its orders.
func (s *Session) HasTraded() bool { return s.hasTraded }

// MarkTraded latches the session; it is never reset.
func (s *Session) MarkTraded() { s.hasTraded = true }

// Summary returns the accumulated run log for the end-of-run notification.
func (s *Session) Summary() string { return s.runLog.String() }
