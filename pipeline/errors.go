package pipeline

import "fmt"

type ErrAlreadyInitialized struct{}

func (ErrAlreadyInitialized) Error() string {
	return "already initialized"
}

type ErrAlreadyAttached struct{}

func (ErrAlreadyAttached) Error() string {
	return "a graph is already attached"
}

type ErrNotAttached struct{}

func (ErrNotAttached) Error() string {
	return "no graph is attached"
}

type ErrCycle struct {
	Filter Filter
}

func (e ErrCycle) Error() string {
	return fmt.Sprintf("the graph has a cycle through %s", e.Filter)
}

type ErrFilter struct {
	Filter Filter
	Err    error
}

func (e ErrFilter) Error() string {
	return fmt.Sprintf("%s: %v", e.Filter, e.Err)
}

func (e ErrFilter) Unwrap() error {
	return e.Err
}
