package domain

import (
	"fmt"

	"github.com/felixgeelhaar/statekit"
)

// Status is a saga's lifecycle state.
type Status string

// Saga lifecycle states.
const (
	StatusPending      Status = "PENDING"
	StatusRunning      Status = "RUNNING"
	StatusCompensating Status = "COMPENSATING"
	StatusCompleted    Status = "COMPLETED"
	StatusFailed       Status = "FAILED"
)

// Event names for the saga state machine.
const (
	eventStart       statekit.EventType = "START"
	eventComplete    statekit.EventType = "COMPLETE"
	eventStepFailed  statekit.EventType = "STEP_FAILED"
	eventCompensated statekit.EventType = "COMPENSATED"
)

// State IDs for the saga state machine.
var (
	stateIDPending      = statekit.StateID(StatusPending)
	stateIDRunning      = statekit.StateID(StatusRunning)
	stateIDCompensating = statekit.StateID(StatusCompensating)
	stateIDCompleted    = statekit.StateID(StatusCompleted)
	stateIDFailed       = statekit.StateID(StatusFailed)
)

// statusMachine wraps a statekit interpreter driving one saga's lifecycle:
// PENDING -> RUNNING -> COMPLETED on success, or RUNNING -> COMPENSATING ->
// FAILED when a step errors. COMPLETED and FAILED are terminal.
type statusMachine struct {
	interpreter *statekit.Interpreter[Context]
}

// newStatusMachine builds and starts the machine. The definition is static,
// so a build failure is a programming error.
func newStatusMachine() *statusMachine {
	machine, err := statekit.NewMachine[Context]("saga").
		WithInitial(stateIDPending).
		State(stateIDPending).
		On(eventStart).Target(stateIDRunning).
		Done().
		State(stateIDRunning).
		On(eventComplete).Target(stateIDCompleted).
		On(eventStepFailed).Target(stateIDCompensating).
		Done().
		State(stateIDCompensating).
		On(eventCompensated).Target(stateIDFailed).
		Done().
		State(stateIDCompleted).
		Final().
		Done().
		State(stateIDFailed).
		Final().
		Done().
		Build()
	if err != nil {
		panic(fmt.Sprintf("failed to build saga state machine: %v", err))
	}

	interpreter := statekit.NewInterpreter(machine)
	interpreter.Start()
	return &statusMachine{interpreter: interpreter}
}

// send fires a lifecycle event; transitions not defined for the current
// state are ignored by the interpreter.
func (m *statusMachine) send(event statekit.EventType) {
	m.interpreter.Send(statekit.Event{Type: event})
}

// status returns the current lifecycle state.
func (m *statusMachine) status() Status {
	return Status(m.interpreter.State().Value)
}

// done reports whether the machine reached a terminal state.
func (m *statusMachine) done() bool {
	return m.interpreter.Done()
}
