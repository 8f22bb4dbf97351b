package server

import (
	"fmt"

	"github.com/ValentinKolb/tcsd/lib/device"
	"github.com/ValentinKolb/tcsd/lib/lockmgr"
	"github.com/ValentinKolb/tcsd/rpc/common"
)

// NewDeviceServerAdapter forwards raw commands to the TPM inside the device critical
// section of locks
func NewDeviceServerAdapter(tpm device.ICommandProcessor, locks lockmgr.ILockManager) IRPCServerAdapter {
	return &deviceServerAdapterImpl{tpm: tpm, locks: locks}
}

type deviceServerAdapterImpl struct {
	tpm   device.ICommandProcessor
	locks lockmgr.ILockManager
}

func (adapter *deviceServerAdapterImpl) Ordinals() []common.Ordinal {
	return []common.Ordinal{common.OrdTransmitCommand}
}

func (adapter *deviceServerAdapterImpl) Handle(ord common.Ordinal, req *common.Message) (common.ResultCode, *common.Message) {
	if ord != common.OrdTransmitCommand {
		return common.ResultUnknownOrdinal, common.NewErrorResponse(
			fmt.Sprintf("RPC DeviceAdapter - Unsupported ordinal: %s", ord),
		)
	}
	if len(req.Payload) == 0 {
		return common.ResultBadParameter, common.NewErrorResponse("empty command")
	}

	var resp []byte
	err := adapter.locks.Do(ord.String(), func() error {
		var err error
		resp, err = adapter.tpm.Execute(req.Payload)
		return err
	})
	if err != nil {
		return errorResponse(err)
	}
	return common.ResultSuccess, common.NewTransmitMessage(resp)
}
