package bridge

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"
)

// Frame kinds. A frame on the wire is kind, big-endian u16 length, body.
const (
	kindPing  byte = 0x01
	kindPong  byte = 0x02
	kindPub   byte = 0x10
	kindClose byte = 0x7f
)

const maxBody = 0xFFFF

type Frame struct {
	Kind byte
	Body []byte
}

// codec reads and writes frames on one stream. Writes may come from
// several goroutines; reads from one.
type codec struct {
	r   io.Reader
	wmu sync.Mutex
	w   io.Writer
}

func newCodec(rw io.ReadWriter) *codec { return &codec{r: rw, w: rw} }

func (c *codec) read() (Frame, error) {
	var hdr [3]byte
	if _, err := io.ReadFull(c.r, hdr[:]); err != nil {
		return Frame{}, err
	}
	f := Frame{Kind: hdr[0]}
	if n := binary.BigEndian.Uint16(hdr[1:]); n > 0 {
		f.Body = make([]byte, n)
		if _, err := io.ReadFull(c.r, f.Body); err != nil {
			return Frame{}, err
		}
	}
	return f, nil
}

func (c *codec) write(f Frame) error {
	if len(f.Body) > maxBody {
		return fmt.Errorf("bridge: frame body %d bytes exceeds %d", len(f.Body), maxBody)
	}
	buf := make([]byte, 3, 3+len(f.Body))
	buf[0] = f.Kind
	binary.BigEndian.PutUint16(buf[1:], uint16(len(f.Body)))
	buf = append(buf, f.Body...)

	c.wmu.Lock()
	defer c.wmu.Unlock()
	_, err := c.w.Write(buf)
	return err
}
