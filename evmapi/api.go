// Package evmapi implements the client half of the host-call boundary used
// by a metered smart-contract VM. A program running inside the sandbox
// issues typed operations (storage access, calls, creates, logs, account
// queries, memory growth, tracing); this package encodes each one into its
// fixed wire form, hands it to an injected RequestHandler, decodes the
// response, and maintains a write-back storage cache plus two single-slot
// side caches so repeated accesses avoid redundant round trips.
//
// The host half of each operation and the transport carrying requests are
// outside this package: RequestHandler is the only point of contact.
package evmapi

import "fmt"

// RequestType identifies a host operation on the wire. The numbering is
// shared between client and host and must stay append-only.
type RequestType uint32

const (
	GetBytes32 RequestType = iota
	SetTrieSlots
	GetTransientBytes32
	SetTransientBytes32
	ContractCall
	DelegateCall
	StaticCall
	Create1
	Create2
	EmitLog
	AccountBalance
	AccountCode
	AccountCodeHash
	AddPages
	CaptureHostIO
)

// RequestTypeOffset is added to the tag by transports that multiplex these
// requests with other message kinds on the same channel.
const RequestTypeOffset = 0x10000000

func (req RequestType) String() string {
	switch req {
	case GetBytes32:
		return "GetBytes32"
	case SetTrieSlots:
		return "SetTrieSlots"
	case GetTransientBytes32:
		return "GetTransientBytes32"
	case SetTransientBytes32:
		return "SetTransientBytes32"
	case ContractCall:
		return "ContractCall"
	case DelegateCall:
		return "DelegateCall"
	case StaticCall:
		return "StaticCall"
	case Create1:
		return "Create1"
	case Create2:
		return "Create2"
	case EmitLog:
		return "EmitLog"
	case AccountBalance:
		return "AccountBalance"
	case AccountCode:
		return "AccountCode"
	case AccountCodeHash:
		return "AccountCodeHash"
	case AddPages:
		return "AddPages"
	case CaptureHostIO:
		return "CaptureHostIO"
	default:
		return fmt.Sprintf("RequestType(%d)", uint32(req))
	}
}

// EvmApiStatus is the single status byte hosts prepend to responses that
// carry no richer outcome.
type EvmApiStatus uint8

const (
	ApiSuccess EvmApiStatus = iota
	ApiFailure
	ApiOutOfGas
	ApiWriteProtection
)

// UserOutcomeKind describes how a call or create completed.
type UserOutcomeKind uint8

const (
	UserSuccess UserOutcomeKind = iota
	UserRevert
	UserFailure
	UserOutOfInk
	UserOutOfStack
)

// outcomeFromByte decodes a call outcome. Client and host enumerations are
// versioned in lock-step, so an unknown byte is a protocol breach and panics
// rather than mapping to a default.
func outcomeFromByte(b byte) UserOutcomeKind {
	switch kind := UserOutcomeKind(b); kind {
	case UserSuccess, UserRevert, UserFailure, UserOutOfInk, UserOutOfStack:
		return kind
	}
	panic(fmt.Sprintf("unknown outcome byte %#x", b))
}

func (kind UserOutcomeKind) String() string {
	switch kind {
	case UserSuccess:
		return "success"
	case UserRevert:
		return "revert"
	case UserFailure:
		return "failure"
	case UserOutOfInk:
		return "out of ink"
	case UserOutOfStack:
		return "out of stack"
	default:
		return fmt.Sprintf("UserOutcomeKind(%d)", uint8(kind))
	}
}

// RequestHandler submits one request to the host and blocks until the reply
// arrives. The primitive itself never errors: failure is encoded inside the
// response bytes per each operation's contract. The returned DataReader
// backs the response payload for operations that hand buffers to callers.
type RequestHandler interface {
	HandleRequest(req RequestType, data []byte) ([]byte, DataReader, uint64)
}
