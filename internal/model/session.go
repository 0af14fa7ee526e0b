package model

import (
	"errors"
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/multierr"
)

// Session is an ONNX classifier with its input and output tensors bound once.
type Session struct {
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	inputName    string
	outputName   string
	inputLen     int
	classes      int
	mu           sync.Mutex
}

func NewSession(opts Options) (*Session, error) {
	if _, err := os.Stat(opts.Path); err != nil {
		return nil, fmt.Errorf("model artifact %s: %w", opts.Path, err)
	}

	if opts.LibraryPath != "" {
		ort.SetSharedLibraryPath(opts.LibraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
		}
	}

	s, err := newSession(opts)
	if err != nil {
		ort.DestroyEnvironment()
		return nil, err
	}
	return s, nil
}

func newSession(opts Options) (*Session, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model inputs/outputs: %w", err)
	}

	in, err := pickIO(inputs, opts.InputName, "input")
	if err != nil {
		return nil, err
	}
	out, err := pickIO(outputs, opts.OutputName, "output")
	if err != nil {
		return nil, err
	}

	inputShape, err := checkInputShape(in.Dimensions, opts.ImageSize)
	if err != nil {
		return nil, err
	}
	outputShape, err := checkOutputShape(out.Dimensions, opts.Classes)
	if err != nil {
		return nil, err
	}

	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	var sessionOptions *ort.SessionOptions
	if opts.IntraOpThreads > 0 {
		sessionOptions, err = ort.NewSessionOptions()
		if err != nil {
			inputTensor.Destroy()
			outputTensor.Destroy()
			return nil, fmt.Errorf("failed to create session options: %w", err)
		}
		defer sessionOptions.Destroy()
		if err := sessionOptions.SetIntraOpNumThreads(opts.IntraOpThreads); err != nil {
			inputTensor.Destroy()
			outputTensor.Destroy()
			return nil, fmt.Errorf("failed to set intra-op threads: %w", err)
		}
	}

	session, err := ort.NewAdvancedSession(opts.Path,
		[]string{in.Name}, []string{out.Name},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		sessionOptions)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &Session{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		inputName:    in.Name,
		outputName:   out.Name,
		inputLen:     int(inputShape.FlattenedSize()),
		classes:      opts.Classes,
	}, nil
}

func pickIO(infos []ort.InputOutputInfo, name, kind string) (ort.InputOutputInfo, error) {
	if len(infos) == 0 {
		return ort.InputOutputInfo{}, fmt.Errorf("%w: model has no %s", ErrShapeMismatch, kind)
	}
	if name == "" {
		return infos[0], nil
	}
	for _, info := range infos {
		if info.Name == name {
			return info, nil
		}
	}
	return ort.InputOutputInfo{}, fmt.Errorf("%w: model has no %s named %q", ErrShapeMismatch, kind, name)
}

// checkInputShape accepts [N,H,W,3] with dynamic (<=0) dimensions and
// returns the concrete single-image shape.
func checkInputShape(dims ort.Shape, size int) (ort.Shape, error) {
	want := ort.NewShape(1, int64(size), int64(size), 3)
	if len(dims) != len(want) {
		return nil, fmt.Errorf("%w: input rank %d, want NHWC %v", ErrShapeMismatch, len(dims), want)
	}
	for i := 1; i < len(dims); i++ {
		if dims[i] > 0 && dims[i] != want[i] {
			return nil, fmt.Errorf("%w: input %v, want %v", ErrShapeMismatch, dims, want)
		}
	}
	return want, nil
}

// checkOutputShape requires the last output dimension to equal the label count.
func checkOutputShape(dims ort.Shape, classes int) (ort.Shape, error) {
	if len(dims) == 0 {
		return nil, fmt.Errorf("%w: scalar output", ErrLabelMismatch)
	}
	last := dims[len(dims)-1]
	if last > 0 && last != int64(classes) {
		return nil, fmt.Errorf("%w: model emits %d scores, %d labels defined", ErrLabelMismatch, last, classes)
	}
	return ort.NewShape(1, int64(classes)), nil
}

// Score copies input into the bound tensor, runs the model and returns a
// copy of the scores.
func (s *Session) Score(input []float32) ([]float32, error) {
	if len(input) != s.inputLen {
		return nil, fmt.Errorf("%w: got %d values, want %d", ErrShapeMismatch, len(input), s.inputLen)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil, errors.New("session closed")
	}

	copy(s.inputTensor.GetData(), input)

	if err := s.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	scores := make([]float32, s.classes)
	copy(scores, s.outputTensor.GetData())
	return scores, nil
}

func (s *Session) InputName() string {
	return s.inputName
}

func (s *Session) OutputName() string {
	return s.outputName
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.inputTensor != nil {
		err = multierr.Append(err, s.inputTensor.Destroy())
		s.inputTensor = nil
	}
	if s.outputTensor != nil {
		err = multierr.Append(err, s.outputTensor.Destroy())
		s.outputTensor = nil
	}
	if s.session != nil {
		err = multierr.Append(err, s.session.Destroy())
		s.session = nil
	}
	return multierr.Append(err, ort.DestroyEnvironment())
}
