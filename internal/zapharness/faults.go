package zapharness

import (
	"fmt"

	"github.com/mash-protocol/mash-zap/pkg/wire"
)

// FaultMode selects how the handler deviates from a compliant broker.
type FaultMode int

const (
	FaultNone FaultMode = iota
	FaultStatusTemporaryFailure
	FaultStatusInternalError
	FaultWrongVersion
	FaultWrongRequestID
	FaultStatusInvalid
	FaultTooManyParts
	FaultDisconnect
	FaultDoNotRecv
	FaultDoNotSend
)

var faultNames = map[FaultMode]string{
	FaultNone:                   "none",
	FaultStatusTemporaryFailure: "temp-failure",
	FaultStatusInternalError:    "internal-error",
	FaultWrongVersion:           "wrong-version",
	FaultWrongRequestID:         "wrong-request-id",
	FaultStatusInvalid:          "invalid-status",
	FaultTooManyParts:           "too-many-parts",
	FaultDisconnect:             "disconnect",
	FaultDoNotRecv:              "do-not-recv",
	FaultDoNotSend:              "do-not-send",
}

func (f FaultMode) String() string {
	if name, ok := faultNames[f]; ok {
		return name
	}
	return fmt.Sprintf("fault(%d)", int(f))
}

// ParseFaultMode parses a kebab-case fault name. The empty string is
// FaultNone.
func ParseFaultMode(name string) (FaultMode, error) {
	if name == "" {
		return FaultNone, nil
	}
	for f, n := range faultNames {
		if n == name {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown fault mode %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (f FaultMode) MarshalText() ([]byte, error) {
	if _, ok := faultNames[f]; !ok {
		return nil, fmt.Errorf("unknown fault mode %d", int(f))
	}
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *FaultMode) UnmarshalText(text []byte) error {
	parsed, err := ParseFaultMode(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// Values substituted by the corrupting faults.
const (
	corruptVersion   = "invalid_version"
	corruptRequestID = "invalid_request_id"
	invalidStatus    = "invalid_status"
)

// Reply texts.
const (
	successText   = "OK"
	successUserID = "anonymous"
	rejectText    = "Invalid client public key"
)

// faultStrategy describes one fault mode's effect on a request cycle.
type faultStrategy struct {
	// successStatus replaces 200 when authentication succeeds.
	successStatus string
	// wrongVersion and wrongRequestID corrupt the echoed fields on both
	// the success and the failure path.
	wrongVersion   bool
	wrongRequestID bool
	// extraFrame inserts an empty frame before metadata on success.
	extraFrame bool
	// suppressReply validates but sends nothing.
	suppressReply bool
	// disconnect abandons the request channel after receiving.
	disconnect bool
	// skipReceive leaves the request channel out of the poll set.
	skipReceive bool
}

var faultTable = map[FaultMode]faultStrategy{
	FaultNone:                   {successStatus: wire.StatusSuccess},
	FaultStatusTemporaryFailure: {successStatus: wire.StatusTemporaryFailure},
	FaultStatusInternalError:    {successStatus: wire.StatusInternalError},
	FaultWrongVersion:           {successStatus: wire.StatusSuccess, wrongVersion: true},
	FaultWrongRequestID:         {successStatus: wire.StatusSuccess, wrongRequestID: true},
	FaultStatusInvalid:          {successStatus: invalidStatus},
	FaultTooManyParts:           {successStatus: wire.StatusSuccess, extraFrame: true},
	FaultDisconnect:             {successStatus: wire.StatusSuccess, disconnect: true},
	FaultDoNotRecv:              {successStatus: wire.StatusSuccess, skipReceive: true},
	FaultDoNotSend:              {successStatus: wire.StatusSuccess, suppressReply: true},
}

func strategyFor(f FaultMode) (faultStrategy, error) {
	s, ok := faultTable[f]
	if !ok {
		return faultStrategy{}, Setup(fmt.Errorf("unknown fault mode %d", int(f)))
	}
	return s, nil
}

// replyFrames builds the frames answering req. It returns nil when the
// strategy sends nothing.
func (s faultStrategy) replyFrames(req *wire.ZAPRequest, authenticated bool) [][]byte {
	if s.suppressReply {
		return nil
	}

	reply := &wire.ZAPReply{
		Version:  req.Version,
		Sequence: req.Sequence,
	}
	if s.wrongVersion {
		reply.Version = corruptVersion
	}
	if s.wrongRequestID {
		reply.Sequence = corruptRequestID
	}

	if !authenticated {
		reply.StatusCode = wire.StatusAuthFailure
		reply.StatusText = rejectText
		return reply.Frames()
	}

	reply.StatusCode = s.successStatus
	reply.StatusText = successText
	reply.UserID = successUserID
	frames := reply.Frames()
	if s.extraFrame {
		last := len(frames) - 1
		frames = append(frames[:last:last], []byte{}, frames[last])
	}
	return frames
}
