package gpu

import "encoding/json"

// Report is a portable summary of a runtime's device.
type Report struct {
	Runtime string `json:"runtime"`
	Adapter string `json:"adapter,omitempty"`
	Vendor  string `json:"vendor,omitempty"`
	// MaxBufferSize is the largest single allocation in bytes; 0 means no
	// known limit.
	MaxBufferSize uint64 `json:"max_buffer_size"`
	// MaxElements is MaxBufferSize in float32 elements.
	MaxElements uint64 `json:"max_elements"`
}

// Probe describes rt.
func Probe(rt Runtime) Report {
	rep := Report{Runtime: rt.Name()}
	switch r := rt.(type) {
	case *WGPURuntime:
		rep.Adapter = r.ctx.AdapterName
		rep.Vendor = r.ctx.VendorName
		rep.MaxBufferSize = r.ctx.MaxBufferSize
	case *HostRuntime:
		r.mu.Lock()
		rep.MaxBufferSize = r.limit
		r.mu.Unlock()
	}
	rep.MaxElements = rep.MaxBufferSize / floatBytes
	return rep
}

// JSON returns the report as indented JSON.
func (r Report) JSON() (string, error) {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}
