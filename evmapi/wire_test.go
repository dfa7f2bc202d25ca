package evmapi

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

// wireHost answers every operation with the smallest well-formed response
// so requests can be captured and decoded back.
func wireHost() *mockHost {
	return &mockHost{respond: func(req RequestType, data []byte) ([]byte, DataReader, uint64) {
		switch req {
		case GetBytes32, GetTransientBytes32, AccountBalance, AccountCodeHash:
			return make([]byte, common.HashLength), NewSliceReader(nil), 0
		case SetTrieSlots, SetTransientBytes32:
			return []byte{byte(ApiSuccess)}, NewSliceReader(nil), 0
		case ContractCall, DelegateCall, StaticCall:
			return []byte{byte(UserSuccess)}, NewSliceReader(nil), 0
		case Create1, Create2:
			return append([]byte{1}, make([]byte, common.AddressLength)...), NewSliceReader(nil), 0
		default:
			return nil, NewSliceReader(nil), 0
		}
	}}
}

// Every request payload must decode back to the arguments it was built
// from, for all operation kinds.
func TestRequestRoundTrip(t *testing.T) {
	key := common.HexToHash("0x0102")
	value := common.HexToHash("0x0304")
	address := common.HexToAddress("0xdeadbeef00112233445566778899aabbccddeeff")

	t.Run("storage get", func(t *testing.T) {
		host := wireHost()
		NewRequestor(host).GetBytes32(key)
		require.Equal(t, GetBytes32, host.last(t).req)

		got, err := ParseStorageRequest(host.last(t).data)
		require.NoError(t, err)
		require.Equal(t, key, got)
	})

	t.Run("storage flush", func(t *testing.T) {
		host := wireHost()
		api := NewRequestor(host)
		other := common.HexToHash("0x0506")
		api.CacheBytes32(key, value)
		api.CacheBytes32(other, value)
		_, err := api.FlushStorageCache(false, 12345)
		require.NoError(t, err)
		require.Equal(t, SetTrieSlots, host.last(t).req)

		flush, err := ParseFlushRequest(host.last(t).data)
		require.NoError(t, err)
		require.Equal(t, uint64(12345), flush.GasLeft)
		require.ElementsMatch(t, []SlotUpdate{{key, value}, {other, value}}, flush.Slots)
	})

	t.Run("transient get", func(t *testing.T) {
		host := wireHost()
		NewRequestor(host).GetTransientBytes32(key)
		require.Equal(t, GetTransientBytes32, host.last(t).req)

		got, err := ParseStorageRequest(host.last(t).data)
		require.NoError(t, err)
		require.Equal(t, key, got)
	})

	t.Run("transient set", func(t *testing.T) {
		host := wireHost()
		_, err := NewRequestor(host).SetTransientBytes32(key, value)
		require.NoError(t, err)
		require.Equal(t, SetTransientBytes32, host.last(t).req)

		gotKey, gotValue, err := ParseTransientStoreRequest(host.last(t).data)
		require.NoError(t, err)
		require.Equal(t, key, gotKey)
		require.Equal(t, value, gotValue)
	})

	calls := []struct {
		name string
		req  RequestType
		send func(api *EvmApiRequestor)
		want *uint256.Int
	}{
		{"contract call", ContractCall, func(api *EvmApiRequestor) {
			api.ContractCall(address, []byte("input"), 7_000_000, uint256.NewInt(42))
		}, uint256.NewInt(42)},
		{"delegate call", DelegateCall, func(api *EvmApiRequestor) {
			api.DelegateCall(address, []byte("input"), 7_000_000)
		}, uint256.NewInt(0)},
		{"static call", StaticCall, func(api *EvmApiRequestor) {
			api.StaticCall(address, []byte("input"), 7_000_000)
		}, uint256.NewInt(0)},
	}
	for _, tc := range calls {
		t.Run(tc.name, func(t *testing.T) {
			host := wireHost()
			tc.send(NewRequestor(host))
			require.Equal(t, tc.req, host.last(t).req)

			call, err := ParseCallRequest(host.last(t).data)
			require.NoError(t, err)
			require.Equal(t, address, call.Contract)
			require.Equal(t, tc.want, call.Value)
			require.Equal(t, uint64(7_000_000), call.Gas)
			require.Equal(t, []byte("input"), call.Input)
		})
	}

	t.Run("create1", func(t *testing.T) {
		host := wireHost()
		_, _, _, err := NewRequestor(host).Create1([]byte("code"), uint256.NewInt(9), 5000)
		require.NoError(t, err)
		require.Equal(t, Create1, host.last(t).req)

		create, err := ParseCreateRequest(host.last(t).data, false)
		require.NoError(t, err)
		require.Equal(t, uint64(5000), create.Gas)
		require.Equal(t, uint256.NewInt(9), create.Endowment)
		require.Nil(t, create.Salt)
		require.Equal(t, []byte("code"), create.Code)
	})

	t.Run("create2", func(t *testing.T) {
		host := wireHost()
		salt := common.HexToHash("0x5a17")
		_, _, _, err := NewRequestor(host).Create2([]byte("code"), uint256.NewInt(9), salt, 5000)
		require.NoError(t, err)
		require.Equal(t, Create2, host.last(t).req)

		create, err := ParseCreateRequest(host.last(t).data, true)
		require.NoError(t, err)
		require.Equal(t, uint64(5000), create.Gas)
		require.Equal(t, uint256.NewInt(9), create.Endowment)
		require.NotNil(t, create.Salt)
		require.Equal(t, salt, *create.Salt)
		require.Equal(t, []byte("code"), create.Code)
	})

	t.Run("emit log", func(t *testing.T) {
		host := wireHost()
		require.NoError(t, NewRequestor(host).EmitLog([]byte("log data"), 4))
		require.Equal(t, EmitLog, host.last(t).req)

		topics, data, err := ParseEmitLogRequest(host.last(t).data)
		require.NoError(t, err)
		require.EqualValues(t, 4, topics)
		require.Equal(t, []byte("log data"), data)
	})

	t.Run("account balance", func(t *testing.T) {
		host := wireHost()
		NewRequestor(host).AccountBalance(address)
		require.Equal(t, AccountBalance, host.last(t).req)

		got, err := ParseAccountRequest(host.last(t).data)
		require.NoError(t, err)
		require.Equal(t, address, got)
	})

	t.Run("account code", func(t *testing.T) {
		host := wireHost()
		NewRequestor(host).AccountCode(address, 31337)
		require.Equal(t, AccountCode, host.last(t).req)

		got, gasLeft, err := ParseAccountCodeRequest(host.last(t).data)
		require.NoError(t, err)
		require.Equal(t, address, got)
		require.Equal(t, uint64(31337), gasLeft)
	})

	t.Run("account codehash", func(t *testing.T) {
		host := wireHost()
		NewRequestor(host).AccountCodeHash(address)
		require.Equal(t, AccountCodeHash, host.last(t).req)

		got, err := ParseAccountRequest(host.last(t).data)
		require.NoError(t, err)
		require.Equal(t, address, got)
	})

	t.Run("add pages", func(t *testing.T) {
		host := wireHost()
		NewRequestor(host).AddPages(16)
		require.Equal(t, AddPages, host.last(t).req)

		pages, err := ParseAddPagesRequest(host.last(t).data)
		require.NoError(t, err)
		require.EqualValues(t, 16, pages)
	})

	t.Run("capture hostio", func(t *testing.T) {
		host := wireHost()
		NewRequestor(host).CaptureHostIO("msg_value", []byte{1, 2}, []byte{3}, 900, 850)
		require.Equal(t, CaptureHostIO, host.last(t).req)

		capture, err := ParseCaptureHostIORequest(host.last(t).data)
		require.NoError(t, err)
		require.Equal(t, uint64(900), capture.StartInk)
		require.Equal(t, uint64(850), capture.EndInk)
		require.Equal(t, "msg_value", capture.Name)
		require.Equal(t, []byte{1, 2}, capture.Args)
		require.Equal(t, []byte{3}, capture.Outs)
	})
}

func TestParseRejectsTruncatedRequests(t *testing.T) {
	cases := []struct {
		name  string
		parse func([]byte) error
	}{
		{"storage", func(b []byte) error { _, err := ParseStorageRequest(b); return err }},
		{"transient store", func(b []byte) error { _, _, err := ParseTransientStoreRequest(b); return err }},
		{"flush", func(b []byte) error { _, err := ParseFlushRequest(b); return err }},
		{"call", func(b []byte) error { _, err := ParseCallRequest(b); return err }},
		{"create", func(b []byte) error { _, err := ParseCreateRequest(b, true); return err }},
		{"emit log", func(b []byte) error { _, _, err := ParseEmitLogRequest(b); return err }},
		{"account", func(b []byte) error { _, err := ParseAccountRequest(b); return err }},
		{"account code", func(b []byte) error { _, _, err := ParseAccountCodeRequest(b); return err }},
		{"add pages", func(b []byte) error { _, err := ParseAddPagesRequest(b); return err }},
		{"capture hostio", func(b []byte) error { _, err := ParseCaptureHostIORequest(b); return err }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Error(t, tc.parse([]byte{0x01}))
		})
	}
}

func TestFlushPairAlignment(t *testing.T) {
	// 8-byte prefix plus a key with no value must be rejected.
	data := make([]byte, 8+common.HashLength)
	_, err := ParseFlushRequest(data)
	require.Error(t, err)
}
