package convert

import (
	"github.com/openfluke/imgbuf/gpu"
	"github.com/openfluke/imgbuf/interval"
)

// ToDevice2D uploads the real parts of a 2D image to rt. The caller owns
// the returned buffer and must Release it.
func ToDevice2D(rt gpu.Runtime, ii interval.Interval) (*gpu.DeviceBuffer, error) {
	host, err := ToFloats2D(ii)
	if err != nil {
		return nil, err
	}
	return gpu.HostToDevice(rt, host)
}

// ToDevice3D uploads the real parts of a 3D image to rt.
func ToDevice3D(rt gpu.Runtime, ii interval.Interval) (*gpu.DeviceBuffer, error) {
	host, err := ToFloats3D(ii)
	if err != nil {
		return nil, err
	}
	return gpu.HostToDevice(rt, host)
}

// FromDevice downloads buf and writes it into the real parts of out. buf is
// not released.
func FromDevice(buf *gpu.DeviceBuffer, out interval.Interval) error {
	host, err := gpu.DeviceToHost(buf)
	if err != nil {
		return err
	}
	return FromFloats(host, out)
}
