package tensor

// Backend defines the interface that compute backends must implement.
// Backends perform the actual numeric work; this package only holds data and
// dispatches to them. The operation set is exactly what the hierarchical
// convolutional backbones in this library require.
type Backend interface {
	// Element-wise binary operations with NumPy-style broadcasting.
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor
	Div(a, b *RawTensor) *RawTensor

	// Scalar operations.
	AddScalar(x *RawTensor, s float64) *RawTensor
	MulScalar(x *RawTensor, s float64) *RawTensor

	// MatMul performs 2D matrix multiplication: [M, K] @ [K, N] -> [M, N].
	MatMul(a, b *RawTensor) *RawTensor

	// Conv2D performs grouped 2D convolution.
	//
	// Input:  [N, C_in, H, W]
	// Kernel: [C_out, C_in/groups, K_h, K_w]
	// Output: [N, C_out, H_out, W_out]
	//
	// Padding is symmetric per axis: padH rows above/below, padW columns
	// left/right. groups must evenly divide both channel counts; depthwise
	// convolution is groups == C_in.
	Conv2D(input, kernel *RawTensor, stride, padH, padW, groups int) *RawTensor

	// Element-wise math.
	Sqrt(x *RawTensor) *RawTensor
	Rsqrt(x *RawTensor) *RawTensor
	Sigmoid(x *RawTensor) *RawTensor
	GELU(x *RawTensor) *RawTensor

	// Reductions.
	SumDim(x *RawTensor, dim int, keepDim bool) *RawTensor
	MeanDim(x *RawTensor, dim int, keepDim bool) *RawTensor

	// Shape and layout.
	Reshape(x *RawTensor, newShape Shape) *RawTensor
	Permute(x *RawTensor, axes ...int) *RawTensor

	// Channel-axis manipulation.
	Cat(tensors []*RawTensor, dim int) *RawTensor
	Chunk(x *RawTensor, n, dim int) []*RawTensor
	Narrow(x *RawTensor, dim, start, length int) *RawTensor

	// Metadata.
	Name() string
	Device() Device
}
