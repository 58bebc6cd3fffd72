package main

import (
	"flag"
	"fmt"
	"math"
	"os"

	"go.uber.org/zap"

	"github.com/openfluke/imgbuf/convert"
	"github.com/openfluke/imgbuf/gpu"
	"github.com/openfluke/imgbuf/interval"
)

func main() {
	var (
		width   = flag.Int64("width", 512, "Image width")
		height  = flag.Int64("height", 512, "Image height")
		depth   = flag.Int64("depth", 0, "Image depth (0 for a 2D image)")
		cplx    = flag.Bool("complex", false, "Also check the interleaved complex layout (2D only)")
		host    = flag.Bool("host", false, "Use the host runtime instead of probing for an adapter")
		probe   = flag.Bool("probe", false, "Print the runtime report as JSON and exit")
		verbose = flag.Bool("v", false, "Verbose development logging")
	)
	flag.Parse()

	log, err := newLogger(*verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	gpu.SetLogger(log)

	var rt gpu.Runtime
	if *host {
		rt = gpu.NewHostRuntime()
	} else {
		rt = gpu.Default()
	}

	if *probe {
		out, err := gpu.Probe(rt).JSON()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(out)
		return
	}

	if err := run(log, rt, *width, *height, *depth, *cplx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(log *zap.Logger, rt gpu.Runtime, w, h, d int64, cplx bool) error {
	shape := []int64{w, h}
	if d > 0 {
		shape = append(shape, d)
	}
	src := interval.NewArrayImg(shape...)
	for i := range src.Data {
		src.Data[i] = complex(float32(math.Sin(float64(i))), float32(i%7))
	}

	var (
		buf *gpu.DeviceBuffer
		err error
	)
	if d > 0 {
		buf, err = convert.ToDevice3D(rt, src)
	} else {
		buf, err = convert.ToDevice2D(rt, src)
	}
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	defer buf.Release()

	dst := interval.NewArrayImg(shape...)
	if err := convert.FromDevice(buf, dst); err != nil {
		return fmt.Errorf("download: %w", err)
	}
	if mismatch := firstMismatch(src.Reals(), dst.Reals()); mismatch >= 0 {
		return fmt.Errorf("round trip mismatch at element %d", mismatch)
	}
	log.Info("real round trip ok",
		zap.String("runtime", rt.Name()),
		zap.Int64s("shape", shape),
		zap.Int("elements", buf.Len()),
	)

	if cplx && d == 0 {
		host, err := convert.ToComplexFloats2D(src)
		if err != nil {
			return err
		}
		err = gpu.WithDeviceBuffer(rt, host, func(b *gpu.DeviceBuffer) error {
			back, err := gpu.DeviceToHost(b)
			if err != nil {
				return err
			}
			out := interval.NewArrayImg(shape...)
			if err := convert.FromComplexFloats2D(back, out); err != nil {
				return err
			}
			for i := range src.Data {
				if src.Data[i] != out.Data[i] {
					return fmt.Errorf("complex round trip mismatch at element %d", i)
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		log.Info("complex round trip ok", zap.Int("floats", len(host)))
	}

	fmt.Printf("%s: %v round trip of %d elements ok\n", rt.Name(), shape, buf.Len())
	return nil
}

func firstMismatch(a, b []float32) int {
	if len(a) != len(b) {
		return 0
	}
	for i := range a {
		if math.Float32bits(a[i]) != math.Float32bits(b[i]) {
			return i
		}
	}
	return -1
}
