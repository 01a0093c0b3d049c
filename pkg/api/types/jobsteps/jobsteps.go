package jobsteps

import (
	"fmt"
	"time"

	apiproducts "github.com/opst/prodplan/pkg/api/types/products"
	"github.com/opst/prodplan/pkg/cmp"
	"github.com/opst/prodplan/pkg/domain"
	"github.com/opst/prodplan/pkg/utils"
)

// Summary of a job step. This is also the payload of job step hooks.
type Summary struct {
	Id            string             `json:"id"`
	Job           string             `json:"job"`
	State         string             `json:"state"`
	Mode          string             `json:"mode,omitempty"`
	Processor     string             `json:"processor,omitempty"`
	Window        apiproducts.Window `json:"window"`
	OutputProduct string             `json:"outputProduct"`
	InputProducts []string           `json:"inputProducts"`
	Message       string             `json:"message,omitempty"`
}

func ComposeSummary(s domain.JobStep) Summary {
	inputs := s.InputProducts
	if inputs == nil {
		inputs = []string{}
	}
	return Summary{
		Id:            s.Id,
		Job:           s.Job,
		State:         string(s.State),
		Mode:          s.Mode,
		Processor:     s.Processor,
		Window:        apiproducts.ComposeWindow(s.Window),
		OutputProduct: s.OutputProduct,
		InputProducts: inputs,
		Message:       s.Message,
	}
}

func (s *Summary) Equal(o *Summary) bool {
	if s == nil || o == nil {
		return s == nil && o == nil
	}
	return s.Id == o.Id &&
		s.Job == o.Job &&
		s.State == o.State &&
		s.Mode == o.Mode &&
		s.Processor == o.Processor &&
		s.Window.Equal(o.Window) &&
		s.OutputProduct == o.OutputProduct &&
		cmp.SliceContentEq(s.InputProducts, o.InputProducts) &&
		s.Message == o.Message
}

type Processor struct {
	Identifier           string `json:"identifier"`
	ProcessorClass       string `json:"processorClass"`
	ProcessorVersion     string `json:"processorVersion"`
	ConfigurationVersion string `json:"configurationVersion,omitempty"`
	Image                string `json:"image"`
}

// Detail is a job step to be run by an execution backend.
type Detail struct {
	Summary
	Order     string                `json:"order"`
	Facility  string                `json:"facility,omitempty"`
	Processor *Processor            `json:"processorDetail,omitempty"`
	Output    apiproducts.Product   `json:"output"`
	Inputs    []apiproducts.Product `json:"inputs"`
}

func ComposeDetail(d domain.JobStepDetail) Detail {
	var processor *Processor
	if p := d.Processor; p != nil {
		processor = &Processor{
			Identifier:           p.Identifier,
			ProcessorClass:       p.ProcessorClass,
			ProcessorVersion:     p.ProcessorVersion,
			ConfigurationVersion: p.ConfigurationVersion,
			Image:                p.Image,
		}
	}
	return Detail{
		Summary:   ComposeSummary(d.JobStep),
		Order:     d.Order,
		Facility:  d.Facility,
		Processor: processor,
		Output:    apiproducts.Compose(d.Output),
		Inputs:    utils.Map(d.Inputs, apiproducts.Compose),
	}
}

func (d *Detail) Equal(o *Detail) bool {
	if d == nil || o == nil {
		return d == nil && o == nil
	}
	return d.Summary.Equal(&o.Summary) &&
		d.Order == o.Order &&
		d.Facility == o.Facility &&
		cmp.PEqualWith(d.Processor, o.Processor, func(a, b Processor) bool { return a == b }) &&
		d.Output.Equal(&o.Output) &&
		cmp.SliceContentEqWith(d.Inputs, o.Inputs, func(a, b apiproducts.Product) bool { return a.Equal(&b) })
}

// Completion is reported by an execution backend when a job step is completed.
type Completion struct {
	FileSize       int64                            `json:"fileSize"`
	Checksum       string                           `json:"checksum"`
	GenerationTime *time.Time                       `json:"generationTime,omitempty"`
	Parameters     map[string]apiproducts.Parameter `json:"parameters,omitempty"`
}

// Parse the completion. When GenerationTime is not given, now is used.
func (c Completion) Parse(now time.Time) (domain.Completion, error) {
	if c.FileSize < 0 {
		return domain.Completion{}, fmt.Errorf("fileSize should not be negative: %d", c.FileSize)
	}
	params, err := apiproducts.ParseParameters(c.Parameters)
	if err != nil {
		return domain.Completion{}, err
	}
	generated := now
	if c.GenerationTime != nil {
		generated = *c.GenerationTime
	}
	return domain.Completion{
		FileSize:       c.FileSize,
		Checksum:       c.Checksum,
		GenerationTime: generated,
		Parameters:     params,
	}, nil
}

// Failure is reported by an execution backend when a job step is failed.
type Failure struct {
	Message string `json:"message"`
}
