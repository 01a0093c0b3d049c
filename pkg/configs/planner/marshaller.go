package planner

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// load planner config from a file.
//
// Args
//
// - filepath: path to a config file.
//
// Returns
//
// - *PlannerConfig
//
// - error: when the file can not be read, or it has misconfiguration.
func Load(filepath string) (*PlannerConfig, error) {
	content, err := os.ReadFile(filepath)
	if err != nil {
		return nil, err
	}
	return Unmarshal(content)
}

func Unmarshal(conf []byte) (out *PlannerConfig, err error) {
	var m *PlannerConfigMarshall
	if err := yaml.Unmarshal(conf, &m); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("config is empty")
	}

	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("misconfiguration: %v", r)
		}
	}()
	return TrySeal[*PlannerConfig](m), nil
}
