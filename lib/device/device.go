package device

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/google/go-tpm/tpm2/transport"
	"github.com/google/go-tpm/tpm2/transport/linuxudstpm"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("device")

// CommandHeaderSize is the size of the TPM command header: tag (2), size (4), code (4)
const CommandHeaderSize = 10

var (
	// ErrNoDevice is returned by the processor used when no TPM is configured
	ErrNoDevice = errors.New("device: no TPM configured")
	// ErrBadCommand is returned for commands whose header does not match their length
	ErrBadCommand = errors.New("device: malformed command")
	// ErrDevice wraps every failure reported by the transport to the TPM
	ErrDevice = errors.New("device: command failed")
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// ICommandProcessor forwards a marshaled TPM command to the device and returns the
// marshaled response. The TPM accepts one command at a time, callers must serialize
// Execute calls (see lib/lockmgr).
type ICommandProcessor interface {
	// Execute sends cmd to the TPM and returns its response
	Execute(cmd []byte) (resp []byte, err error)
	// Close releases the device
	Close() error
}

// --------------------------------------------------------------------------
// Factory Methods
// --------------------------------------------------------------------------

// Open opens the TPM described by name:
//
//	""/"none"           no device, every command fails with ErrNoDevice
//	"tcp:host:port"     raw command port of a TCP simulator (e.g. swtpm)
//	"/path/to/tpm.sock" unix domain socket of a simulator
//	"/dev/tpmrm0"       character device of a hardware TPM
func Open(name string) (ICommandProcessor, error) {
	switch {
	case name == "" || name == "none":
		Logger.Warningf("no TPM configured, device commands will be rejected")
		return Unavailable(), nil

	case strings.HasPrefix(name, "tcp:"):
		addr := strings.TrimPrefix(name, "tcp:")
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to TPM simulator at %s: %w", addr, err)
		}
		Logger.Infof("connected to TPM simulator at %s", addr)
		return FromTransport(transport.FromReadWriteCloser(conn)), nil

	case strings.HasSuffix(name, ".sock"):
		t, err := linuxudstpm.Open(name)
		if err != nil {
			return nil, fmt.Errorf("failed to open TPM socket %s: %w", name, err)
		}
		Logger.Infof("opened TPM socket %s", name)
		return FromTransport(t), nil

	default:
		t, err := transport.OpenTPM(name)
		if err != nil {
			return nil, fmt.Errorf("failed to open TPM device %s: %w", name, err)
		}
		Logger.Infof("opened TPM device %s", name)
		return FromTransport(t), nil
	}
}

// FromTransport wraps a go-tpm transport. If the transport implements io.Closer it is
// closed by Close.
func FromTransport(t transport.TPM) ICommandProcessor {
	return &tpmProcessor{tpm: t}
}

// Unavailable returns a processor that rejects every command with ErrNoDevice
func Unavailable() ICommandProcessor {
	return Func(func([]byte) ([]byte, error) {
		return nil, ErrNoDevice
	})
}

// Func adapts a function to ICommandProcessor. Close is a no-op.
type Func func(cmd []byte) ([]byte, error)

func (f Func) Execute(cmd []byte) ([]byte, error) {
	return f(cmd)
}

func (f Func) Close() error {
	return nil
}

// --------------------------------------------------------------------------
// go-tpm transport processor
// --------------------------------------------------------------------------

type tpmProcessor struct {
	tpm transport.TPM
}

func (p *tpmProcessor) Execute(cmd []byte) ([]byte, error) {
	if err := CheckCommand(cmd); err != nil {
		return nil, err
	}
	resp, err := p.tpm.Send(cmd)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDevice, err)
	}
	return resp, nil
}

func (p *tpmProcessor) Close() error {
	if c, ok := p.tpm.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// CheckCommand verifies that cmd carries a complete command header whose size field
// matches the length of cmd. The command itself is not interpreted.
func CheckCommand(cmd []byte) error {
	if len(cmd) < CommandHeaderSize {
		return fmt.Errorf("%w: %d bytes is shorter than the command header", ErrBadCommand, len(cmd))
	}
	if size := binary.BigEndian.Uint32(cmd[2:6]); int64(size) != int64(len(cmd)) {
		return fmt.Errorf("%w: header declares %d bytes, got %d", ErrBadCommand, size, len(cmd))
	}
	return nil
}
