package domain

import (
	"errors"
	"fmt"
	"strings"
)

// LoopType names a background loop of the planner.
type LoopType string

const (
	Planning  LoopType = "planning"  // decomposes approved orders into jobs and job steps
	Readiness LoopType = "readiness" // re-evaluates inputs of pending job steps
)

var ErrUnknownLoopType = errors.New("unknown loop type")

// LoopTypes lists all loops, in the order of the pipeline.
func LoopTypes() []LoopType {
	return []LoopType{Planning, Readiness}
}

func (lt LoopType) String() string {
	return string(lt)
}

// ParseLoopType reads a loop name. Leading and trailing spaces are ignored, and so is the case.
func ParseLoopType(s string) (LoopType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for _, lt := range LoopTypes() {
		if string(lt) == name {
			return lt, nil
		}
	}
	return "", fmt.Errorf(`%w: "%s"`, ErrUnknownLoopType, s)
}
