package evmapi

// Host-side decoders for the request payloads built by EvmApiRequestor.
// Hosts and tests share these so each layout is defined in exactly one
// place on both ends of the channel.

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

// ParseStorageRequest decodes the key of a GetBytes32 or
// GetTransientBytes32 request.
func ParseStorageRequest(data []byte) (common.Hash, error) {
	if len(data) != common.HashLength {
		return common.Hash{}, errors.Errorf("storage request has %d bytes, want %d", len(data), common.HashLength)
	}
	return common.BytesToHash(data), nil
}

// ParseTransientStoreRequest decodes a SetTransientBytes32 request.
func ParseTransientStoreRequest(data []byte) (key, value common.Hash, err error) {
	if len(data) != 2*common.HashLength {
		err = errors.Errorf("transient store request has %d bytes, want %d", len(data), 2*common.HashLength)
		return
	}
	key = common.BytesToHash(data[:common.HashLength])
	value = common.BytesToHash(data[common.HashLength:])
	return
}

// SlotUpdate is one dirty slot carried by a flush.
type SlotUpdate struct {
	Key   common.Hash
	Value common.Hash
}

type FlushRequest struct {
	GasLeft uint64
	Slots   []SlotUpdate
}

// ParseFlushRequest decodes a SetTrieSlots request: the remaining-gas
// prefix followed by zero or more (key, value) pairs.
func ParseFlushRequest(data []byte) (*FlushRequest, error) {
	if len(data) < 8 || (len(data)-8)%(2*common.HashLength) != 0 {
		return nil, errors.Errorf("flush request has invalid length %d", len(data))
	}
	req := &FlushRequest{GasLeft: binary.BigEndian.Uint64(data[:8])}
	for data = data[8:]; len(data) > 0; data = data[2*common.HashLength:] {
		req.Slots = append(req.Slots, SlotUpdate{
			Key:   common.BytesToHash(data[:common.HashLength]),
			Value: common.BytesToHash(data[common.HashLength : 2*common.HashLength]),
		})
	}
	return req, nil
}

type CallRequest struct {
	Contract common.Address
	Value    *uint256.Int
	Gas      uint64
	Input    []byte
}

// ParseCallRequest decodes a ContractCall, DelegateCall or StaticCall
// request. The value word is present for every variant; the no-value
// variants carry zero.
func ParseCallRequest(data []byte) (*CallRequest, error) {
	if len(data) < common.AddressLength+common.HashLength+8 {
		return nil, errors.Errorf("call request too short: %d bytes", len(data))
	}
	req := &CallRequest{Contract: common.BytesToAddress(data[:common.AddressLength])}
	data = data[common.AddressLength:]
	req.Value = new(uint256.Int).SetBytes(data[:common.HashLength])
	data = data[common.HashLength:]
	req.Gas = binary.BigEndian.Uint64(data[:8])
	req.Input = data[8:]
	return req, nil
}

type CreateRequest struct {
	Gas       uint64
	Endowment *uint256.Int
	Salt      *common.Hash
	Code      []byte
}

// ParseCreateRequest decodes a Create1 (salted=false) or Create2
// (salted=true) request.
func ParseCreateRequest(data []byte, salted bool) (*CreateRequest, error) {
	need := 8 + common.HashLength
	if salted {
		need += common.HashLength
	}
	if len(data) < need {
		return nil, errors.Errorf("create request too short: %d bytes", len(data))
	}
	req := &CreateRequest{Gas: binary.BigEndian.Uint64(data[:8])}
	data = data[8:]
	req.Endowment = new(uint256.Int).SetBytes(data[:common.HashLength])
	data = data[common.HashLength:]
	if salted {
		salt := common.BytesToHash(data[:common.HashLength])
		req.Salt = &salt
		data = data[common.HashLength:]
	}
	req.Code = data
	return req, nil
}

// ParseEmitLogRequest decodes an EmitLog request into its topic count and
// payload.
func ParseEmitLogRequest(data []byte) (uint32, []byte, error) {
	if len(data) < 4 {
		return 0, nil, errors.Errorf("emit-log request too short: %d bytes", len(data))
	}
	return binary.BigEndian.Uint32(data[:4]), data[4:], nil
}

// ParseAccountRequest decodes the address of an AccountBalance or
// AccountCodeHash request.
func ParseAccountRequest(data []byte) (common.Address, error) {
	if len(data) != common.AddressLength {
		return common.Address{}, errors.Errorf("account request has %d bytes, want %d", len(data), common.AddressLength)
	}
	return common.BytesToAddress(data), nil
}

// ParseAccountCodeRequest decodes an AccountCode request.
func ParseAccountCodeRequest(data []byte) (common.Address, uint64, error) {
	if len(data) != common.AddressLength+8 {
		return common.Address{}, 0, errors.Errorf("account code request has %d bytes, want %d", len(data), common.AddressLength+8)
	}
	address := common.BytesToAddress(data[:common.AddressLength])
	return address, binary.BigEndian.Uint64(data[common.AddressLength:]), nil
}

// ParseAddPagesRequest decodes an AddPages request.
func ParseAddPagesRequest(data []byte) (uint16, error) {
	if len(data) != 2 {
		return 0, errors.Errorf("add-pages request has %d bytes, want 2", len(data))
	}
	return binary.BigEndian.Uint16(data), nil
}

type HostIOCapture struct {
	StartInk uint64
	EndInk   uint64
	Name     string
	Args     []byte
	Outs     []byte
}

// ParseCaptureHostIORequest decodes a CaptureHostIO request.
func ParseCaptureHostIORequest(data []byte) (*HostIOCapture, error) {
	const header = 2*8 + 3*2
	if len(data) < header {
		return nil, errors.Errorf("hostio capture too short: %d bytes", len(data))
	}
	capture := &HostIOCapture{
		StartInk: binary.BigEndian.Uint64(data[:8]),
		EndInk:   binary.BigEndian.Uint64(data[8:16]),
	}
	nameLen := int(binary.BigEndian.Uint16(data[16:18]))
	argsLen := int(binary.BigEndian.Uint16(data[18:20]))
	outsLen := int(binary.BigEndian.Uint16(data[20:22]))
	data = data[header:]
	if len(data) != nameLen+argsLen+outsLen {
		return nil, errors.Errorf("hostio capture blob lengths do not cover %d bytes", len(data))
	}
	capture.Name = string(data[:nameLen])
	capture.Args = data[nameLen : nameLen+argsLen]
	capture.Outs = data[nameLen+argsLen:]
	return capture, nil
}
