package infra

import (
	"fmt"
	"io"
	"path"
	"runtime"
	"strconv"
	"strings"

	"go.uber.org/zap/zapcore"
)

// References:
// https://github.com/pkg/errors/blob/master/stack.go

type Frame uintptr

func (f Frame) pc() uintptr { return uintptr(f) - 1 }

// resolve maps the program counter back to source, with placeholders
// for frames the runtime no longer knows.
func (f Frame) resolve() (name, file string, line int) {
	pc := f.pc()
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return "unknownFunc", "unknownFile", 0
	}
	file, line = fn.FileLine(pc)
	return fn.Name(), file, line
}

func (f Frame) name() string { name, _, _ := f.resolve(); return name }
func (f Frame) file() string { _, file, _ := f.resolve(); return file }
func (f Frame) line() int    { _, _, line := f.resolve(); return line }

// Format renders the frame for the fmt verbs:
// %s source file base name, %d source line, %n bare function name,
// %v is %s:%d. The + flag on s and v switches to
// <function>\n\t<full path>, the path as seen at compile time.
func (f Frame) Format(s fmt.State, verb rune) {
	switch verb {
	case 's':
		if !s.Flag('+') {
			_, _ = io.WriteString(s, path.Base(f.file()))
			return
		}
		_, _ = io.WriteString(s, f.name())
		_, _ = io.WriteString(s, "\n\t")
		_, _ = io.WriteString(s, f.file())
	case 'd':
		_, _ = io.WriteString(s, strconv.Itoa(f.line()))
	case 'n':
		_, _ = io.WriteString(s, funcName(f.name()))
	case 'v':
		f.Format(s, 's')
		_, _ = io.WriteString(s, ":")
		f.Format(s, 'd')
	}
}

// MarshalText backs encoders that look for encoding.TextMarshaler
// before falling back to fmt.
func (f Frame) MarshalText() ([]byte, error) {
	name, file, line := f.resolve()
	if name == "unknownFunc" {
		return []byte("unknownFrame"), nil
	}
	return []byte(name + " " + file + ":" + strconv.Itoa(line)), nil
}

func (f Frame) MarshalJSON() ([]byte, error) {
	name, file, line := f.resolve()
	if name == "unknownFunc" {
		return []byte(`{"frame":"unknownFrame"}`), nil
	}
	var b strings.Builder
	b.WriteString(`{"func":"`)
	b.WriteString(name)
	b.WriteString(`","fileAndLine":"`)
	b.WriteString(file)
	b.WriteString(":")
	b.WriteString(strconv.Itoa(line))
	b.WriteString(`"}`)
	return []byte(b.String()), nil
}

// funcName trims the package path and receiver from a fully qualified
// function name.
func funcName(name string) string {
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.Index(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return name
}

const errStackMaxDepth = 32

// ErrorStack is an error with the call frames captured at wrap time.
// It also marshals itself as a zap object so loggers can inline the
// message chain and the stack without extra formatting.
type ErrorStack interface {
	error
	zapcore.ObjectMarshaler
	Unwrap() error
	Frames() []Frame
}

type errorStack struct {
	cause  error
	msg    string
	frames []Frame
}

func (es *errorStack) Error() string {
	if es.cause == nil {
		return es.msg
	}
	if len(es.msg) <= 0 {
		return es.cause.Error()
	}
	builder := strings.Builder{}
	_, _ = builder.WriteString(es.msg)
	_, _ = builder.WriteString(": ")
	_, _ = builder.WriteString(es.cause.Error())
	return builder.String()
}

func (es *errorStack) Unwrap() error {
	return es.cause
}

func (es *errorStack) Frames() []Frame {
	return es.frames
}

func (es *errorStack) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("error", es.Error())
	return enc.AddArray("errStack", zapcore.ArrayMarshalerFunc(func(arrEnc zapcore.ArrayEncoder) error {
		for _, frame := range es.frames {
			text, err := frame.MarshalText()
			if err != nil {
				return err
			}
			arrEnc.AppendString(string(text))
		}
		return nil
	}))
}

func captureFrames(skip int) []Frame {
	pcs := make([]uintptr, errStackMaxDepth)
	n := runtime.Callers(skip, pcs)
	frames := make([]Frame, 0, n)
	for i := 0; i < n; i++ {
		frames = append(frames, Frame(pcs[i]))
	}
	return frames
}

// NewErrorStack creates an error from msg and captures the caller frames.
func NewErrorStack(msg string) error {
	return &errorStack{
		msg:    msg,
		frames: captureFrames(3),
	}
}

// WrapErrorStack attaches caller frames to err. A nil err stays nil and
// an err already carrying frames is returned unchanged.
func WrapErrorStack(err error) error {
	if err == nil {
		return nil
	}
	if es, ok := err.(ErrorStack); ok {
		return es
	}
	return &errorStack{
		cause:  err,
		frames: captureFrames(3),
	}
}

// WrapErrorStackWithMessage prepends msg to err's message chain and
// captures the caller frames. A nil err stays nil.
func WrapErrorStackWithMessage(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &errorStack{
		cause:  err,
		msg:    msg,
		frames: captureFrames(3),
	}
}
