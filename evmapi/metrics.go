package evmapi

import "github.com/ethereum/go-ethereum/metrics"

var (
	storageHitMeter   = metrics.NewRegisteredMeter("evmapi/storage/hit", nil)
	storageMissMeter  = metrics.NewRegisteredMeter("evmapi/storage/miss", nil)
	storageFlushMeter = metrics.NewRegisteredMeter("evmapi/storage/flush", nil)
	codeHitMeter      = metrics.NewRegisteredMeter("evmapi/code/hit", nil)
	codeMissMeter     = metrics.NewRegisteredMeter("evmapi/code/miss", nil)
)
