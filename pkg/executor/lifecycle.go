/*
Copyright 2023 The Nuclio Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package executor

import (
	"github.com/nuclio/errors"
)

type State string

const (
	StateCreated       State = "Created"
	StateContextStaged State = "ContextStaged"
	StateReady         State = "Ready"
	StateRunning       State = "Running"
	StateCompleted     State = "Completed"
	StateFailed        State = "Failed"
	StateTornDown      State = "TornDown"
)

var allowedTransitions = map[State][]State{
	StateCreated:       {StateContextStaged, StateTornDown},
	StateContextStaged: {StateReady, StateTornDown},
	StateReady:         {StateRunning, StateTornDown},
	StateRunning:       {StateCompleted, StateFailed, StateTornDown},
	StateCompleted:     {StateTornDown},
	StateFailed:        {StateTornDown},
}

// Lifecycle tracks the state of a staged environment. Not safe for concurrent use
type Lifecycle struct {
	state   State
	history []State
}

func NewLifecycle() *Lifecycle {
	return &Lifecycle{
		state:   StateCreated,
		history: []State{StateCreated},
	}
}

func (l *Lifecycle) GetState() State {
	return l.state
}

// GetHistory returns every state visited, in order
func (l *Lifecycle) GetHistory() []State {
	return append([]State{}, l.history...)
}

func (l *Lifecycle) IsTornDown() bool {
	return l.state == StateTornDown
}

// Transition moves to the given state, failing if the move is not allowed from the current one
func (l *Lifecycle) Transition(to State) error {
	for _, allowedState := range allowedTransitions[l.state] {
		if allowedState == to {
			l.state = to
			l.history = append(l.history, to)
			return nil
		}
	}

	return errors.Errorf("Illegal state transition from %s to %s", l.state, to)
}

// require fails unless the lifecycle is currently in the given state
func (l *Lifecycle) require(state State) error {
	if l.state != state {
		return errors.Errorf("Expected state %s, current state is %s", state, l.state)
	}

	return nil
}
