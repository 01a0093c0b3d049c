package products

import (
	"fmt"
	"time"

	"github.com/opst/prodplan/pkg/cmp"
	"github.com/opst/prodplan/pkg/domain"
)

type Parameter struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

func ComposeParameters(ps domain.Parameters) map[string]Parameter {
	ret := make(map[string]Parameter, len(ps))
	for k, p := range ps {
		ret[k] = Parameter{Type: string(p.Type), Value: p.Value}
	}
	return ret
}

// ParseParameters converts parameters to domain ones.
//
// Parameters without type are STRING.
func ParseParameters(ps map[string]Parameter) (domain.Parameters, error) {
	if len(ps) == 0 {
		return nil, nil
	}
	ret := make(domain.Parameters, len(ps))
	for k, p := range ps {
		typ := domain.StringParameter
		if p.Type != "" {
			t, err := domain.AsParameterType(p.Type)
			if err != nil {
				return nil, fmt.Errorf("parameter %s: %w", k, err)
			}
			typ = t
		}
		ret[k] = domain.Parameter{Type: typ, Value: p.Value}
	}
	return ret, nil
}

type Window struct {
	Start time.Time `json:"start"`
	Stop  time.Time `json:"stop"`
}

func ComposeWindow(w domain.TimeWindow) Window {
	return Window{Start: w.Start, Stop: w.Stop}
}

func (w Window) Parse() domain.TimeWindow {
	return domain.Window(w.Start, w.Stop)
}

func (w Window) Equal(o Window) bool {
	return w.Start.Equal(o.Start) && w.Stop.Equal(o.Stop)
}

type Product struct {
	Id             string               `json:"id"`
	ProductClass   string               `json:"productClass"`
	Mode           string               `json:"mode,omitempty"`
	FileClass      string               `json:"fileClass,omitempty"`
	Sensing        Window               `json:"sensing"`
	GenerationTime *time.Time           `json:"generationTime,omitempty"`
	Parameters     map[string]Parameter `json:"parameters,omitempty"`
	Facility       string               `json:"facility,omitempty"`
	FileSize       int64                `json:"fileSize,omitempty"`
	Checksum       string               `json:"checksum,omitempty"`
}

func Compose(p domain.Product) Product {
	return Product{
		Id:             p.Id,
		ProductClass:   p.ProductClass,
		Mode:           p.Mode,
		FileClass:      p.FileClass,
		Sensing:        ComposeWindow(p.Validity()),
		GenerationTime: p.GenerationTime,
		Parameters:     ComposeParameters(p.Parameters),
		Facility:       p.Facility,
		FileSize:       p.FileSize,
		Checksum:       p.Checksum,
	}
}

func (p *Product) Equal(o *Product) bool {
	if p == nil || o == nil {
		return p == nil && o == nil
	}
	return p.Id == o.Id &&
		p.ProductClass == o.ProductClass &&
		p.Mode == o.Mode &&
		p.FileClass == o.FileClass &&
		p.Sensing.Equal(o.Sensing) &&
		cmp.PEqualWith(p.GenerationTime, o.GenerationTime, time.Time.Equal) &&
		cmp.MapEq(p.Parameters, o.Parameters) &&
		p.Facility == o.Facility &&
		p.FileSize == o.FileSize &&
		p.Checksum == o.Checksum
}
