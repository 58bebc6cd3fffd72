package gpu

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/openfluke/webgpu/wgpu"
	"go.uber.org/zap"
)

// Context holds the single WebGPU context for the process
type Context struct {
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Queue    *wgpu.Queue

	// MaxBufferSize is the adapter's limit for a single buffer, in bytes.
	MaxBufferSize uint64
	AdapterName   string
	VendorName    string

	once    sync.Once
	initErr error
}

var ctx Context

// GetContext returns the shared GPU context, initializing it on first use.
// Only the options of the first call take effect.
func GetContext(opts *WGPUOptions) (*Context, error) {
	ctx.once.Do(func() {
		ctx.initErr = ctx.init(opts.withDefaults())
	})
	if ctx.initErr != nil {
		return nil, ctx.initErr
	}
	if ctx.Device == nil || ctx.Queue == nil {
		return nil, fmt.Errorf("%w: device or queue not initialized", ErrNoGPU)
	}
	return &ctx, nil
}

func (c *Context) init(opts WGPUOptions) error {
	log := Logger()

	c.Instance = wgpu.CreateInstance(nil)
	if c.Instance == nil {
		return fmt.Errorf("%w: failed to create WebGPU instance", ErrNoGPU)
	}

	// Explicit vendor match wins over the power preference.
	if opts.PreferVendor != "" {
		want := strings.ToLower(opts.PreferVendor)
		for _, a := range c.Instance.EnumerateAdapters(nil) {
			info := a.GetInfo()
			log.Debug("found adapter",
				zap.String("name", info.Name),
				zap.String("vendor", info.VendorName),
				zap.Uint32("vendor_id", uint32(info.VendorId)),
				zap.Uint32("device_id", uint32(info.DeviceId)),
			)
			if strings.Contains(strings.ToLower(info.Name), want) ||
				strings.Contains(strings.ToLower(info.VendorName), want) {
				log.Info("selecting preferred adapter", zap.String("name", info.Name))
				c.Adapter = a
				break
			}
		}
	}

	tryInit := func(o *wgpu.RequestAdapterOptions) error {
		if c.Adapter != nil {
			return nil
		}
		var err error
		c.Adapter, err = c.Instance.RequestAdapter(o)
		return err
	}

	var err error
	if c.Adapter == nil {
		err = tryInit(&wgpu.RequestAdapterOptions{PowerPreference: opts.PowerPreference})
	}
	if err != nil && c.Adapter == nil {
		log.Warn("preferred power adapter failed, trying low power", zap.Error(err))
		err = tryInit(&wgpu.RequestAdapterOptions{PowerPreference: wgpu.PowerPreferenceLowPower})
	}
	if err != nil && c.Adapter == nil {
		log.Warn("low power adapter failed, trying default", zap.Error(err))
		err = tryInit(nil)
	}
	if c.Adapter == nil {
		return fmt.Errorf("%w: all adapter attempts failed: %v", ErrNoGPU, err)
	}

	info := c.Adapter.GetInfo()
	c.AdapterName = strings.TrimSpace(info.Name)
	c.VendorName = strings.TrimSpace(info.VendorName)
	c.MaxBufferSize = c.Adapter.GetLimits().Limits.MaxBufferSize
	log.Info("using gpu adapter",
		zap.String("name", c.AdapterName),
		zap.String("vendor", c.VendorName),
		zap.Uint64("max_buffer_size", c.MaxBufferSize),
	)

	c.Device, err = c.Adapter.RequestDevice(nil)
	if err != nil {
		return fmt.Errorf("%w: request device: %v", ErrNoGPU, err)
	}
	c.Queue = c.Device.GetQueue()
	return nil
}

func preferredVendor() string {
	if v, ok := os.LookupEnv("IMGBUF_PREFER_VENDOR"); ok {
		return v
	}
	return "nvidia"
}
