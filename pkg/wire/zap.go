package wire

import (
	"fmt"
)

// ZAP constants.
const (
	// ZAPVersion is the only protocol version a broker accepts.
	ZAPVersion = "1.0"

	// ZAPEndpoint is the well-known inproc address a broker binds.
	ZAPEndpoint = "inproc://zeromq.zap.01"

	// zapHeaderFrames is the number of frames before the credentials.
	zapHeaderFrames = 6

	// zapReplyFrames is the exact number of frames in a reply.
	zapReplyFrames = 6
)

// Mechanism names as carried in ZAP requests and HELLO commands.
const (
	MechanismNull  = "NULL"
	MechanismPlain = "PLAIN"
	MechanismCurve = "CURVE"
)

// ZAPRequest is an authentication request forwarded by an endpoint.
type ZAPRequest struct {
	Version     string
	Sequence    string
	Domain      string
	Address     string
	RoutingID   string
	Mechanism   string
	Credentials [][]byte
}

// Frames renders the request in wire order.
func (r *ZAPRequest) Frames() [][]byte {
	frames := [][]byte{
		[]byte(r.Version),
		[]byte(r.Sequence),
		[]byte(r.Domain),
		[]byte(r.Address),
		[]byte(r.RoutingID),
		[]byte(r.Mechanism),
	}
	return append(frames, r.Credentials...)
}

// ParseZAPRequest reads a request from its frames. Only the frame count is
// checked here; version and credential checks belong to the broker.
func ParseZAPRequest(frames [][]byte) (*ZAPRequest, error) {
	if len(frames) < zapHeaderFrames {
		return nil, fmt.Errorf("%w: %d frames, want at least %d", ErrMalformedRequest, len(frames), zapHeaderFrames)
	}
	req := &ZAPRequest{
		Version:   string(frames[0]),
		Sequence:  string(frames[1]),
		Domain:    string(frames[2]),
		Address:   string(frames[3]),
		RoutingID: string(frames[4]),
		Mechanism: string(frames[5]),
	}
	for _, f := range frames[zapHeaderFrames:] {
		req.Credentials = append(req.Credentials, append([]byte(nil), f...))
	}
	return req, nil
}

// ZAPReply is a broker's answer to a ZAPRequest.
type ZAPReply struct {
	Version    string
	Sequence   string
	StatusCode string
	StatusText string
	UserID     string
	Metadata   []byte
}

// Frames renders the reply in wire order.
func (r *ZAPReply) Frames() [][]byte {
	metadata := r.Metadata
	if metadata == nil {
		metadata = []byte{}
	}
	return [][]byte{
		[]byte(r.Version),
		[]byte(r.Sequence),
		[]byte(r.StatusCode),
		[]byte(r.StatusText),
		[]byte(r.UserID),
		metadata,
	}
}

// Accepted returns true if the reply admits the peer.
func (r *ZAPReply) Accepted() bool {
	return r.StatusCode == StatusSuccess
}

// ParseZAPReply validates a reply against the request sequence it answers.
// Every deviation is reported as a *ProtocolError.
func ParseZAPReply(frames [][]byte, sequence string) (*ZAPReply, error) {
	if len(frames) != zapReplyFrames {
		return nil, NewProtocolError(ProtocolZAPMalformedReply, "%d frames, want %d", len(frames), zapReplyFrames)
	}
	reply := &ZAPReply{
		Version:    string(frames[0]),
		Sequence:   string(frames[1]),
		StatusCode: string(frames[2]),
		StatusText: string(frames[3]),
		UserID:     string(frames[4]),
		Metadata:   frames[5],
	}
	if reply.Version != ZAPVersion {
		return nil, NewProtocolError(ProtocolZAPBadVersion, "version %q", reply.Version)
	}
	if reply.Sequence != sequence {
		return nil, NewProtocolError(ProtocolZAPBadRequestID, "sequence %q, want %q", reply.Sequence, sequence)
	}
	if !ValidStatus(reply.StatusCode) {
		return nil, NewProtocolError(ProtocolZAPInvalidStatusCode, "status %q", reply.StatusCode)
	}
	if err := validateMetadata(reply.Metadata); err != nil {
		return nil, err
	}
	return reply, nil
}

// validateMetadata accepts an empty frame or a sequence of
// name-length(1) name value-length(4) value properties.
func validateMetadata(data []byte) error {
	for len(data) > 0 {
		nameLen := int(data[0])
		if nameLen == 0 || len(data) < 1+nameLen+4 {
			return NewProtocolError(ProtocolZAPInvalidMetadata, "truncated property name")
		}
		data = data[1+nameLen:]
		valueLen := int(data[0])<<24 | int(data[1])<<16 | int(data[2])<<8 | int(data[3])
		data = data[4:]
		if len(data) < valueLen {
			return NewProtocolError(ProtocolZAPInvalidMetadata, "truncated property value")
		}
		data = data[valueLen:]
	}
	return nil
}
