package evmapi

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

// createFallbackMessage stands in for a create failure whose response body
// carries no usable text.
const createFallbackMessage = "create_response_malformed"

// EvmApiRequestor drives the host-call protocol on behalf of one VM
// execution. It owns the storage cache and the two single-slot side caches
// (most recently fetched contract code, most recent return data). One
// instance serves exactly one in-flight execution and must not be shared.
type EvmApiRequestor struct {
	handler        RequestHandler
	lastCode       *cachedCode
	lastReturnData DataReader
	storage        storageCache
}

type cachedCode struct {
	address common.Address
	data    DataReader
}

func NewRequestor(handler RequestHandler) *EvmApiRequestor {
	return &EvmApiRequestor{
		handler: handler,
		storage: newStorageCache(),
	}
}

func (r *EvmApiRequestor) handleRequest(req RequestType, data []byte) ([]byte, DataReader, uint64) {
	return r.handler.HandleRequest(req, data)
}

// GetBytes32 reads a storage slot through the cache. A miss fetches the
// slot from the host and charges the request's gas plus the flat boundary
// cost on top of the tiered read price.
func (r *EvmApiRequestor) GetBytes32(key common.Hash) (common.Hash, uint64) {
	cost := r.storage.readGas()
	if word, ok := r.storage.slots[key]; ok {
		storageHitMeter.Mark(1)
		return word.value, cost
	}
	storageMissMeter.Mark(1)

	res, _, gas := r.handleRequest(GetBytes32, key.Bytes())
	if len(res) != common.HashLength {
		panic(fmt.Sprintf("malformed storage response: %d bytes", len(res)))
	}
	value := common.BytesToHash(res)
	r.storage.slots[key] = knownWord(value)
	return value, saturatingAdd(cost, saturatingAdd(gas, EvmApiInk))
}

// CacheBytes32 records a pending storage write. The host is not contacted
// until FlushStorageCache.
func (r *EvmApiRequestor) CacheBytes32(key, value common.Hash) uint64 {
	if word, ok := r.storage.slots[key]; ok {
		word.value = value
	} else {
		r.storage.slots[key] = unknownWord(value)
	}
	return r.storage.writeGas()
}

// FlushStorageCache pushes every dirty slot to the host in one batch.
// Dirty slots are marked clean, and the cache emptied when clear is set,
// before the request goes out: a failed flush therefore leaves the cache
// claiming more than the host confirmed. Callers must treat any flush error
// as grounds for discarding the whole execution context.
func (r *EvmApiRequestor) FlushStorageCache(clear bool, gasLeft uint64) (uint64, error) {
	data := make([]byte, 8, 8+2*common.HashLength*len(r.storage.slots))
	binary.BigEndian.PutUint64(data, gasLeft)

	dirty := 0
	for key, word := range r.storage.slots {
		if !word.dirty() {
			continue
		}
		data = append(data, key.Bytes()...)
		data = append(data, word.value.Bytes()...)
		known := word.value
		word.known = &known
		dirty++
	}
	if clear {
		r.storage.clear()
	}
	storageFlushMeter.Mark(int64(dirty))
	log.Trace("Flushing storage cache", "dirty", dirty, "clear", clear)

	res, _, cost := r.handleRequest(SetTrieSlots, data)
	if len(res) == 0 || EvmApiStatus(res[0]) != ApiSuccess {
		return cost, errors.Errorf("storage flush rejected: %s", textOrHex(res))
	}
	return cost, nil
}

// GetTransientBytes32 reads transaction-scoped storage. Transient slots
// bypass the cache entirely.
func (r *EvmApiRequestor) GetTransientBytes32(key common.Hash) (common.Hash, uint64) {
	res, _, cost := r.handleRequest(GetTransientBytes32, key.Bytes())
	if len(res) != common.HashLength {
		panic(fmt.Sprintf("malformed transient storage response: %d bytes", len(res)))
	}
	return common.BytesToHash(res), cost
}

// SetTransientBytes32 writes transaction-scoped storage directly on the
// host.
func (r *EvmApiRequestor) SetTransientBytes32(key, value common.Hash) (uint64, error) {
	request := make([]byte, 0, 2*common.HashLength)
	request = append(request, key.Bytes()...)
	request = append(request, value.Bytes()...)

	res, _, cost := r.handleRequest(SetTransientBytes32, request)
	if len(res) == 0 || EvmApiStatus(res[0]) != ApiSuccess {
		return cost, errors.Errorf("transient store rejected: %s", textOrHex(res))
	}
	return cost, nil
}

func (r *EvmApiRequestor) callRequest(
	callType RequestType, contract common.Address, input []byte, gas uint64, value *uint256.Int,
) (uint32, uint64, UserOutcomeKind) {
	request := make([]byte, 0, common.AddressLength+common.HashLength+8+len(input))
	request = append(request, contract.Bytes()...)
	valueWord := value.Bytes32()
	request = append(request, valueWord[:]...)
	request = binary.BigEndian.AppendUint64(request, gas)
	request = append(request, input...)

	res, data, cost := r.handleRequest(callType, request)
	if len(res) == 0 {
		panic("empty call response")
	}
	status := outcomeFromByte(res[0])
	r.lastReturnData = data
	return uint32(data.Len()), cost, status
}

// ContractCall calls another contract, attaching value.
func (r *EvmApiRequestor) ContractCall(
	contract common.Address, input []byte, gas uint64, value *uint256.Int,
) (uint32, uint64, UserOutcomeKind) {
	return r.callRequest(ContractCall, contract, input, gas, value)
}

// DelegateCall runs the target's code in the caller's own context. Carries
// no value: the wire slot holds the zero word.
func (r *EvmApiRequestor) DelegateCall(
	contract common.Address, input []byte, gas uint64,
) (uint32, uint64, UserOutcomeKind) {
	return r.callRequest(DelegateCall, contract, input, gas, uint256.NewInt(0))
}

// StaticCall calls the target with state mutation disabled. Carries no
// value.
func (r *EvmApiRequestor) StaticCall(
	contract common.Address, input []byte, gas uint64,
) (uint32, uint64, UserOutcomeKind) {
	return r.callRequest(StaticCall, contract, input, gas, uint256.NewInt(0))
}

func (r *EvmApiRequestor) createRequest(
	createType RequestType, code []byte, endowment *uint256.Int, salt *common.Hash, gas uint64,
) (common.Address, uint32, uint64, error) {
	request := make([]byte, 0, 8+2*common.HashLength+len(code))
	request = binary.BigEndian.AppendUint64(request, gas)
	endowmentWord := endowment.Bytes32()
	request = append(request, endowmentWord[:]...)
	if salt != nil {
		request = append(request, salt.Bytes()...)
	}
	request = append(request, code...)

	res, data, cost := r.handleRequest(createType, request)
	if len(res) != 1+common.AddressLength || res[0] == 0 {
		if len(res) > 0 {
			res = res[1:]
		}
		message := createFallbackMessage
		if len(res) > 0 && utf8.Valid(res) {
			message = string(res)
		}
		return common.Address{}, 0, cost, errors.New(message)
	}
	address := common.BytesToAddress(res[1:])
	r.lastReturnData = data
	return address, uint32(data.Len()), cost, nil
}

// Create1 deploys a contract at the sender-and-nonce derived address.
func (r *EvmApiRequestor) Create1(
	code []byte, endowment *uint256.Int, gas uint64,
) (common.Address, uint32, uint64, error) {
	return r.createRequest(Create1, code, endowment, nil, gas)
}

// Create2 deploys a contract at the salt-derived address.
func (r *EvmApiRequestor) Create2(
	code []byte, endowment *uint256.Int, salt common.Hash, gas uint64,
) (common.Address, uint32, uint64, error) {
	return r.createRequest(Create2, code, endowment, &salt, gas)
}

// GetReturnData hands out the buffer returned by the most recent call or
// create. Asking before any call or create has run is a sequencing bug in
// the VM, not bad external input, so it panics.
func (r *EvmApiRequestor) GetReturnData() DataReader {
	if r.lastReturnData == nil {
		panic("missing return data")
	}
	return r.lastReturnData
}

// EmitLog publishes a log record. An empty response means success; any
// bytes at all are the host's error text.
func (r *EvmApiRequestor) EmitLog(data []byte, topics uint32) error {
	request := make([]byte, 0, 4+len(data))
	request = binary.BigEndian.AppendUint32(request, topics)
	request = append(request, data...)

	res, _, _ := r.handleRequest(EmitLog, request)
	if len(res) > 0 {
		if !utf8.Valid(res) {
			return errors.New("malformed emit-log response")
		}
		return errors.New(string(res))
	}
	return nil
}

// AccountBalance queries an account's balance in wei.
func (r *EvmApiRequestor) AccountBalance(address common.Address) (*uint256.Int, uint64) {
	res, _, cost := r.handleRequest(AccountBalance, address.Bytes())
	if len(res) != common.HashLength {
		panic(fmt.Sprintf("malformed balance response: %d bytes", len(res)))
	}
	return new(uint256.Int).SetBytes(res), cost
}

// AccountCode fetches a contract's code, memoizing the single most recent
// address. A repeat query for the cached address is free; a different
// address evicts it.
func (r *EvmApiRequestor) AccountCode(address common.Address, gasLeft uint64) (DataReader, uint64) {
	if cached := r.lastCode; cached != nil && cached.address == address {
		codeHitMeter.Mark(1)
		return cached.data, 0
	}
	codeMissMeter.Mark(1)

	request := make([]byte, 0, common.AddressLength+8)
	request = append(request, address.Bytes()...)
	request = binary.BigEndian.AppendUint64(request, gasLeft)

	_, data, cost := r.handleRequest(AccountCode, request)
	r.lastCode = &cachedCode{address: address, data: data}
	log.Trace("Fetched account code", "address", address, "len", data.Len())
	return data, cost
}

// AccountCodeHash queries the hash of an account's code.
func (r *EvmApiRequestor) AccountCodeHash(address common.Address) (common.Hash, uint64) {
	res, _, cost := r.handleRequest(AccountCodeHash, address.Bytes())
	if len(res) != common.HashLength {
		panic(fmt.Sprintf("malformed codehash response: %d bytes", len(res)))
	}
	return common.BytesToHash(res), cost
}

// AddPages charges for growing the program's linear memory. There is no
// data result, only a cost.
func (r *EvmApiRequestor) AddPages(pages uint16) uint64 {
	_, _, cost := r.handleRequest(AddPages, binary.BigEndian.AppendUint16(nil, pages))
	return cost
}

// CaptureHostIO reports one hostio invocation to the host's tracer. The
// response is ignored entirely: tracing must never alter execution or
// surface errors.
func (r *EvmApiRequestor) CaptureHostIO(name string, args, outs []byte, startInk, endInk uint64) {
	request := make([]byte, 0, 2*8+3*2+len(name)+len(args)+len(outs))
	request = binary.BigEndian.AppendUint64(request, startInk)
	request = binary.BigEndian.AppendUint64(request, endInk)
	request = binary.BigEndian.AppendUint16(request, uint16(len(name)))
	request = binary.BigEndian.AppendUint16(request, uint16(len(args)))
	request = binary.BigEndian.AppendUint16(request, uint16(len(outs)))
	request = append(request, name...)
	request = append(request, args...)
	request = append(request, outs...)
	r.handleRequest(CaptureHostIO, request)
}

// textOrHex renders host-supplied error bytes, degrading to hex when the
// payload is not valid UTF-8.
func textOrHex(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return hexutil.Encode(b)
}
