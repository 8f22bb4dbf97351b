package server

import (
	"fmt"

	"github.com/ValentinKolb/tcsd/lib/lockmgr"
	"github.com/ValentinKolb/tcsd/lib/ps"
	"github.com/ValentinKolb/tcsd/lib/store"
	"github.com/ValentinKolb/tcsd/rpc/common"
	"github.com/google/uuid"
)

// NewKeyStoreServerAdapter serves the key registry ordinals from keys.
// Mutations run inside the device critical section of locks.
func NewKeyStoreServerAdapter(keys store.IKeyStore, locks lockmgr.ILockManager) IRPCServerAdapter {
	return &keyStoreServerAdapterImpl{keys: keys, locks: locks}
}

type keyStoreServerAdapterImpl struct {
	keys  store.IKeyStore
	locks lockmgr.ILockManager
}

func (adapter *keyStoreServerAdapterImpl) Ordinals() []common.Ordinal {
	return []common.Ordinal{
		common.OrdRegisterKey,
		common.OrdUnregisterKey,
		common.OrdGetRegisteredKey,
		common.OrdEnumerateChildren,
		common.OrdListKeys,
	}
}

func (adapter *keyStoreServerAdapterImpl) Handle(ord common.Ordinal, req *common.Message) (common.ResultCode, *common.Message) {
	// Check for nil store
	if adapter.keys == nil {
		return common.ResultInternal, common.NewErrorResponse("handler: key store is nil")
	}

	if ord != common.OrdListKeys && req.UUID == uuid.Nil {
		return common.ResultBadParameter, common.NewErrorResponse("the nil uuid is not a valid key identifier")
	}

	switch ord {
	case common.OrdRegisterKey:
		rec := req.KeyRecord()
		err := adapter.locks.Do(ord.String(), func() error {
			return adapter.keys.Insert(rec)
		})
		return errorResponse(err)

	case common.OrdUnregisterKey:
		err := adapter.locks.Do(ord.String(), func() error {
			return adapter.keys.Remove(req.UUID)
		})
		return errorResponse(err)

	case common.OrdGetRegisteredKey:
		rec, ok := adapter.keys.Lookup(req.UUID)
		if !ok {
			return common.ResultKeyNotFound, common.NewErrorResponse(fmt.Sprintf("key %s is not registered", req.UUID))
		}
		return common.ResultSuccess, common.NewKeyResponse(rec)

	case common.OrdEnumerateChildren:
		// The SRK is the root of the hierarchy even before it is registered itself
		if _, ok := adapter.keys.Lookup(req.UUID); !ok && req.UUID != ps.SRKUUID {
			return common.ResultKeyNotFound, common.NewErrorResponse(fmt.Sprintf("key %s is not registered", req.UUID))
		}
		children := adapter.keys.ChildrenOf(req.UUID)
		if children == nil {
			children = []uuid.UUID{}
		}
		return common.ResultSuccess, common.NewUUIDsResponse(children)

	case common.OrdListKeys:
		records := adapter.keys.Records()
		ids := make([]uuid.UUID, 0, len(records))
		for _, rec := range records {
			ids = append(ids, rec.UUID)
		}
		return common.ResultSuccess, common.NewUUIDsResponse(ids)

	default:
		return common.ResultUnknownOrdinal, common.NewErrorResponse(
			fmt.Sprintf("RPC KeyStoreAdapter - Unsupported ordinal: %s", ord),
		)
	}
}
