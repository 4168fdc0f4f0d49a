package wire

import "strconv"

// ZAP status codes as they appear in the reply status frame.
const (
	// StatusSuccess accepts the connection.
	StatusSuccess = "200"

	// StatusTemporaryFailure rejects the connection; the client may retry later.
	StatusTemporaryFailure = "300"

	// StatusAuthFailure rejects the credentials.
	StatusAuthFailure = "400"

	// StatusInternalError reports a broker-side failure.
	StatusInternalError = "500"
)

// ValidStatus returns true if code is one of the four defined status codes.
func ValidStatus(code string) bool {
	switch code {
	case StatusSuccess, StatusTemporaryFailure, StatusAuthFailure, StatusInternalError:
		return true
	default:
		return false
	}
}

// StatusValue returns the numeric value of a valid status code, or 0.
func StatusValue(code string) int {
	if !ValidStatus(code) {
		return 0
	}
	v, _ := strconv.Atoi(code)
	return v
}

// StatusName returns a short name for a status code.
func StatusName(code string) string {
	switch code {
	case StatusSuccess:
		return "SUCCESS"
	case StatusTemporaryFailure:
		return "TEMPORARY_FAILURE"
	case StatusAuthFailure:
		return "AUTH_FAILURE"
	case StatusInternalError:
		return "INTERNAL_ERROR"
	default:
		return "INVALID"
	}
}
