package codec

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// Limits 限制帧编解码的内存使用
type Limits struct {
	// MaxFrameBytes 单帧最大字节数（不含换行符）
	MaxFrameBytes int
}

// DefaultLimits 返回默认限制
func DefaultLimits() Limits {
	return Limits{
		MaxFrameBytes: 8 * 1024 * 1024,
	}
}

// Reader 从字节流中按行读取帧
type Reader struct {
	r      *bufio.Reader
	limits Limits
}

// NewReader 创建帧读取器
func NewReader(r io.Reader, limits Limits) *Reader {
	if limits.MaxFrameBytes <= 0 {
		limits = DefaultLimits()
	}
	return &Reader{r: bufio.NewReaderSize(r, 64*1024), limits: limits}
}

// ReadFrame 读取下一个帧
//
// 返回包装 ErrMalformedFrame 的错误时，损坏的行已被丢弃，可以继续读取；
// 其他错误（包括 io.EOF）来自底层流，读取器不可再用。
func (r *Reader) ReadFrame() (Frame, error) {
	for {
		line, err := r.readLine()
		if err != nil {
			return Frame{}, err
		}
		if len(line) == 0 {
			continue
		}
		return Decode(line)
	}
}

// readLine 读取一行，超长的行会被整体跳过
func (r *Reader) readLine() ([]byte, error) {
	var line []byte
	oversize := false
	for {
		chunk, err := r.r.ReadSlice('\n')
		if !oversize {
			if len(line)+len(chunk) > r.limits.MaxFrameBytes+1 {
				oversize = true
				line = nil
			} else {
				line = append(line, chunk...)
			}
		}

		switch {
		case err == nil:
			if oversize {
				return nil, fmt.Errorf("%w: %w", ErrMalformedFrame, ErrFrameTooLarge)
			}
			return line[:len(line)-1], nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF) && (len(line) > 0 || oversize):
			// 流在行中间结束：报告截断的帧，下一次读取返回 EOF
			return nil, fmt.Errorf("%w: truncated frame", ErrMalformedFrame)
		default:
			return nil, err
		}
	}
}

// Writer 将帧按行写入字节流
//
// Writer 不是并发安全的，调用方负责串行化写入。
type Writer struct {
	w      io.Writer
	limits Limits
}

// NewWriter 创建帧写入器
func NewWriter(w io.Writer, limits Limits) *Writer {
	if limits.MaxFrameBytes <= 0 {
		limits = DefaultLimits()
	}
	return &Writer{w: w, limits: limits}
}

// WriteFrame 编码并写入一个帧
func (w *Writer) WriteFrame(f Frame) error {
	data, err := Encode(f)
	if err != nil {
		return err
	}
	if len(data) > w.limits.MaxFrameBytes {
		return ErrFrameTooLarge
	}
	data = append(data, '\n')
	_, err = w.w.Write(data)
	return err
}
