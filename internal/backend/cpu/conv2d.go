package cpu

import (
	"fmt"

	"github.com/strata-ml/strata/internal/parallel"
	"github.com/strata-ml/strata/internal/tensor"
)

// Conv2D performs grouped 2D convolution using im2col per (batch, group).
//
// Input shape:  [N, C_in, H, W]
// Kernel shape: [C_out, C_in/groups, K_h, K_w]
// Output shape: [N, C_out, H_out, W_out]
//
// where
//
//	H_out = (H + 2*padH - K_h)/stride + 1
//	W_out = (W + 2*padW - K_w)/stride + 1
//
// Depthwise convolution is the groups == C_in case: each kernel sees a single
// input channel. The (batch, group) pairs are independent and computed in
// parallel.
func (cpu *CPUBackend) Conv2D(input, kernel *tensor.RawTensor, stride, padH, padW, groups int) *tensor.RawTensor {
	inShape, kShape := input.Shape(), kernel.Shape()

	if len(inShape) != 4 {
		panic(fmt.Sprintf("conv2d: input must be 4D [N,C,H,W], got %dD", len(inShape)))
	}
	if len(kShape) != 4 {
		panic(fmt.Sprintf("conv2d: kernel must be 4D [C_out,C_in/groups,K_h,K_w], got %dD", len(kShape)))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("conv2d: invalid stride %d", stride))
	}
	if padH < 0 || padW < 0 {
		panic(fmt.Sprintf("conv2d: invalid padding (%d, %d)", padH, padW))
	}
	if groups <= 0 {
		panic(fmt.Sprintf("conv2d: invalid groups %d", groups))
	}

	n, cIn, h, w := inShape[0], inShape[1], inShape[2], inShape[3]
	cOut, cInK, kh, kw := kShape[0], kShape[1], kShape[2], kShape[3]

	if cIn%groups != 0 || cOut%groups != 0 {
		panic(fmt.Sprintf("conv2d: groups %d must divide input channels %d and output channels %d", groups, cIn, cOut))
	}
	if cInK != cIn/groups {
		panic(fmt.Sprintf("conv2d: kernel expects %d input channels per group, input provides %d", cInK, cIn/groups))
	}

	hOut := (h+2*padH-kh)/stride + 1
	wOut := (w+2*padW-kw)/stride + 1
	if hOut <= 0 || wOut <= 0 {
		panic(fmt.Sprintf("conv2d: invalid output dimensions %dx%d (check stride/padding)", hOut, wOut))
	}

	output := tensor.MustNewRaw(tensor.Shape{n, cOut, hOut, wOut}, input.DType(), cpu.device)

	switch input.DType() {
	case tensor.Float32:
		convGrouped(output.AsFloat32(), input.AsFloat32(), kernel.AsFloat32(),
			n, cIn, h, w, cOut, kh, kw, hOut, wOut, stride, padH, padW, groups, cpu.par)
	case tensor.Float64:
		convGrouped(output.AsFloat64(), input.AsFloat64(), kernel.AsFloat64(),
			n, cIn, h, w, cOut, kh, kw, hOut, wOut, stride, padH, padW, groups, cpu.par)
	default:
		panic(fmt.Sprintf("conv2d: unsupported dtype %s", input.DType()))
	}

	return output
}

// convGrouped runs one im2col + matmul per (batch, group) pair.
func convGrouped[T float32 | float64](out, in, kernel []T,
	n, cIn, h, w, cOut, kh, kw, hOut, wOut, stride, padH, padW, groups int,
	cfg parallel.Config) {

	cInG := cIn / groups   // input channels per group
	cOutG := cOut / groups // output channels per group
	colWidth := cInG * kh * kw
	spatial := hOut * wOut

	parallel.For2(n, groups, func(b, g int) {
		// im2col for this sample's group slice:
		// col[p*colWidth + (c*kh+i)*kw + j] = in[b, g*cInG+c, ...]
		col := make([]T, spatial*colWidth)
		inBase := b*cIn*h*w + g*cInG*h*w

		p := 0
		for oh := 0; oh < hOut; oh++ {
			hStart := oh*stride - padH
			for ow := 0; ow < wOut; ow++ {
				wStart := ow*stride - padW
				buf := col[p*colWidth:]
				idx := 0
				for c := 0; c < cInG; c++ {
					chBase := inBase + c*h*w
					for ki := 0; ki < kh; ki++ {
						ih := hStart + ki
						if ih < 0 || ih >= h {
							idx += kw
							continue
						}
						rowBase := chBase + ih*w
						for kj := 0; kj < kw; kj++ {
							iw := wStart + kj
							if iw >= 0 && iw < w {
								buf[idx] = in[rowBase+iw]
							}
							idx++
						}
					}
				}
				p++
			}
		}

		// kernel slice for this group: [cOutG, colWidth] row-major.
		// out[b, g*cOutG+oc, :, :] = kernelG[oc] . col[p]
		kBase := g * cOutG * colWidth
		outBase := b*cOut*spatial + g*cOutG*spatial
		for oc := 0; oc < cOutG; oc++ {
			kRow := kernel[kBase+oc*colWidth : kBase+(oc+1)*colWidth]
			dst := out[outBase+oc*spatial : outBase+(oc+1)*spatial]
			for p := 0; p < spatial; p++ {
				buf := col[p*colWidth : (p+1)*colWidth]
				var sum T
				for k := range kRow {
					sum += kRow[k] * buf[k]
				}
				dst[p] = sum
			}
		}
	}, cfg)
}
