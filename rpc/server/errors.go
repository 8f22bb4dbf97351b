package server

import (
	"errors"

	"github.com/ValentinKolb/tcsd/lib/device"
	"github.com/ValentinKolb/tcsd/lib/store"
	"github.com/ValentinKolb/tcsd/rpc/common"
)

// resultCode maps errors of the key store and the device to protocol result codes
func resultCode(err error) common.ResultCode {
	var storeErr *store.Error
	switch {
	case err == nil:
		return common.ResultSuccess
	case errors.As(err, &storeErr):
		switch storeErr.Code {
		case store.RetCKeyExists:
			return common.ResultKeyExists
		case store.RetCKeyNotFound:
			return common.ResultKeyNotFound
		case store.RetCDanglingParent:
			return common.ResultDanglingParent
		case store.RetCHasChildren:
			return common.ResultHasChildren
		case store.RetCFormat:
			return common.ResultBadParameter
		default:
			return common.ResultInternal
		}
	case errors.Is(err, device.ErrNoDevice):
		return common.ResultNoDevice
	case errors.Is(err, device.ErrBadCommand):
		return common.ResultBadParameter
	case errors.Is(err, device.ErrDevice):
		return common.ResultDeviceFailure
	default:
		return common.ResultInternal
	}
}

// errorResponse builds the response for the outcome of an operation without result data
func errorResponse(err error) (common.ResultCode, *common.Message) {
	code := resultCode(err)
	if err == nil {
		return code, &common.Message{}
	}
	if code == common.ResultInternal {
		Logger.Errorf("internal error: %v", err)
	}
	return code, common.NewErrorResponse(err.Error())
}
