package stream

import (
	"bufio"
	"bytes"
	"io"
)

// sseDecoder reads Server-Sent Events and yields the data payload of every
// event that a browser would hand to onmessage.
type sseDecoder struct {
	r *bufio.Reader
}

func newSSEDecoder(r io.Reader) *sseDecoder {
	return &sseDecoder{r: bufio.NewReaderSize(r, 64*1024)}
}

// Next returns the next event's data lines joined with "\n".
func (d *sseDecoder) Next() (string, error) {
	var (
		data      [][]byte
		hasData   bool
		eventType string
	)
	flush := func() (string, bool) {
		defer func() {
			data, hasData, eventType = nil, false, ""
		}()
		if !hasData {
			return "", false
		}
		if eventType != "" && eventType != "message" {
			return "", false
		}
		return string(bytes.Join(data, []byte("\n"))), true
	}
	for {
		line, err := d.r.ReadBytes('\n')
		if err != nil {
			// An event is only complete once its blank line arrives; a body
			// that stops earlier drops the pending event.
			return "", err
		}
		line = bytes.TrimRight(line, "\r\n")
		if len(line) == 0 {
			if payload, ok := flush(); ok {
				return payload, nil
			}
			continue
		}
		d.field(line, &data, &hasData, &eventType)
	}
}

func (d *sseDecoder) field(line []byte, data *[][]byte, hasData *bool, eventType *string) {
	if len(line) == 0 || line[0] == ':' {
		return
	}
	name, value := line, []byte(nil)
	if i := bytes.IndexByte(line, ':'); i >= 0 {
		name, value = line[:i], line[i+1:]
		if len(value) > 0 && value[0] == ' ' {
			value = value[1:]
		}
	}
	switch string(name) {
	case "data":
		*data = append(*data, append([]byte(nil), value...))
		*hasData = true
	case "event":
		*eventType = string(value)
	}
}
