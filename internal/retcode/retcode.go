// Package retcode defines the numeric return-code taxonomy carried on every
// protocol action response.
package retcode

import "fmt"

// Code is a protocol-visible error classification.
type Code int

const (
	OK Code = 0

	RequestError       Code = 10000
	BadRequest         Code = 10001
	UnknownAction      Code = 10002
	PermissionDenied   Code = 10003
	ActionUnavailable  Code = 10004
	RateLimitExceeded  Code = 10005
	ParamError         Code = 10006

	UnexpectedError Code = 20001

	FileError          Code = 21000
	FileNotFound       Code = 21001
	FileAlreadyExists  Code = 21002
	FileInUse          Code = 21003
	ItsADirectory      Code = 21004
	ItsAFile           Code = 21005
	FileAccessDenied   Code = 21006
	DiskFull           Code = 21007

	UploadDownloadError Code = 21100
	AlreadyTransferring Code = 21101
	NotTransferring     Code = 21102
	FileTooBig          Code = 21103

	InstanceError          Code = 30000
	InstanceNotFound       Code = 30001
	InstanceAlreadyExists  Code = 30002
	BadInstanceState       Code = 30003
	BadInstanceType        Code = 30004

	InstanceActionError Code = 31001
	InstallationError   Code = 31002
	ProcessError        Code = 31003
)

var messages = map[Code]string{
	OK:                    "OK",
	RequestError:          "Request error",
	BadRequest:            "Bad request",
	UnknownAction:         "Unknown action",
	PermissionDenied:      "Permission denied",
	ActionUnavailable:     "Action unavailable",
	RateLimitExceeded:     "Rate limit exceeded",
	ParamError:            "Parameter error",
	UnexpectedError:       "Unexpected error",
	FileError:             "File error",
	FileNotFound:          "File not found",
	FileAlreadyExists:     "File already exists",
	FileInUse:             "File in use",
	ItsADirectory:         "It's a directory",
	ItsAFile:              "It's a file",
	FileAccessDenied:      "File access denied",
	DiskFull:              "Disk full",
	UploadDownloadError:   "Upload/download error",
	AlreadyTransferring:   "Already transferring",
	NotTransferring:       "Not transferring",
	FileTooBig:            "File too big",
	InstanceError:         "Instance error",
	InstanceNotFound:      "Instance not found",
	InstanceAlreadyExists: "Instance already exists",
	BadInstanceState:      "Bad instance state",
	BadInstanceType:       "Bad instance type",
	InstanceActionError:   "Instance action error",
	InstallationError:     "Installation error",
	ProcessError:          "Process error",
}

// Error pairs a Code with its (possibly detailed) message.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// New builds an Error from a Code using its default message.
func New(code Code) *Error {
	return &Error{Code: code, Message: messages[code]}
}

// WithMessage appends detail to the code's default message, separated by ": ".
func WithMessage(code Code, detail string) *Error {
	return &Error{Code: code, Message: fmt.Sprintf("%s: %s", messages[code], detail)}
}
