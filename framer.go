package modbus

import (
	"encoding/binary"
	"errors"
	"io"
)

// framer represents the server-side modbus mode.
type framer interface {
	// read consumes exactly one application data unit from the stream.
	read(r io.Reader) (adu []byte, err error)
	// decode splits an adu into its routing information and payload.
	decode(adu []byte) (uid, code byte, data []byte, err error)
	// reply assembles the response adu for the given request.
	reply(code byte, data, req []byte) (res []byte, err error)
}

var _ framer = (*tcpFramer)(nil)

// tcpFramer implements MBAP framing.
type tcpFramer struct{}

func (f *tcpFramer) read(r io.Reader) (adu []byte, err error) {
	header := make([]byte, 7)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint16(header[4:])
	if length < 2 || length > 254 {
		return nil, errors.New("modbus: invalid frame length")
	}
	adu = make([]byte, 6+int(length))
	copy(adu, header)
	if _, err := io.ReadFull(r, adu[7:]); err != nil {
		return nil, err
	}
	return adu, nil
}

func (f *tcpFramer) decode(adu []byte) (uid, code byte, data []byte, err error) {
	if len(adu) < 8 {
		return 0, 0, nil, errors.New("modbus: invalid request")
	}
	return adu[6], adu[7], adu[8:], nil
}

func (f *tcpFramer) reply(code byte, data, req []byte) (res []byte, err error) {
	if len(data) > 252 {
		return nil, ErrDataSizeExceeded
	}
	res = make([]byte, 8+len(data))
	// transaction and protocol id are copied from the request
	copy(res, req[:4])
	binary.BigEndian.PutUint16(res[4:], 2+uint16(len(data)))
	res[6], res[7] = req[6], code
	copy(res[8:], data)
	return res, nil
}
