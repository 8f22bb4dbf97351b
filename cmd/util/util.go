package util

import (
	"fmt"
	"strings"

	"github.com/ValentinKolb/tcsd/lib/ps"
	"github.com/ValentinKolb/tcsd/rpc/client"
	"github.com/ValentinKolb/tcsd/rpc/common"
	"github.com/ValentinKolb/tcsd/rpc/serializer"
	"github.com/ValentinKolb/tcsd/rpc/transport"
	"github.com/ValentinKolb/tcsd/rpc/transport/tcp"
	"github.com/ValentinKolb/tcsd/rpc/transport/unix"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50

	// EnvPrefix is the prefix of all environment variables read by tcsd
	EnvPrefix = "tcsd"
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// InitConfig loads .env files and makes viper read TCSD_* environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// --------------------------------------------------------------------------
// Client Commands
// --------------------------------------------------------------------------

// SetupRPCClientFlags adds common RPC connection flags to a command
func SetupRPCClientFlags(cmd *cobra.Command) {
	key := "timeout"
	cmd.PersistentFlags().Int(key, 10, WrapString("The timeout in seconds of a single request"))

	key = "endpoint"
	cmd.PersistentFlags().String(key, fmt.Sprintf("localhost:%d", common.DefaultPort), WrapString("The address of the daemon (host:port for tcp, the socket path for unix)"))

	key = "buffer-size"
	cmd.PersistentFlags().Int(key, common.DefaultBufferSize, WrapString("The size of the receive buffer in bytes, upper bound for a response body"))
}

// GetClientConfig reads client configuration from viper
func GetClientConfig() common.ClientConfig {
	return common.ClientConfig{
		Transport:     viper.GetString("transport"),
		Endpoint:      viper.GetString("endpoint"),
		TimeoutSecond: viper.GetInt("timeout"),
		BufferSize:    viper.GetInt("buffer-size"),
	}
}

// GetSerializer creates a serializer based on configuration
func GetSerializer() (serializer.IRPCSerializer, error) {
	switch viper.GetString("serializer") {
	case "json":
		return serializer.NewJSONSerializer(), nil
	case "binary":
		return serializer.NewBinarySerializer(), nil
	default:
		return nil, fmt.Errorf("invalid serializer %s", viper.GetString("serializer"))
	}
}

// GetClientTransport creates the client transport based on configuration
func GetClientTransport() (transport.IRPCClientTransport, error) {
	switch viper.GetString("transport") {
	case "tcp":
		return tcp.NewTCPClientTransport(), nil
	case "unix":
		return unix.NewUnixClientTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}
}

// GetServerTransport creates the server transport based on configuration
func GetServerTransport() (transport.IRPCServerTransport, error) {
	switch viper.GetString("transport") {
	case "tcp":
		return tcp.NewTCPServerTransport(), nil
	case "unix":
		return unix.NewUnixServerTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}
}

// NewClient connects to the daemon and opens a context. The caller must close the client.
func NewClient(cmd *cobra.Command) (*client.RPCClient, error) {
	if err := BindCommandFlags(cmd); err != nil {
		return nil, err
	}

	s, err := GetSerializer()
	if err != nil {
		return nil, err
	}
	t, err := GetClientTransport()
	if err != nil {
		return nil, err
	}

	c, err := client.NewRPCClient(GetClientConfig(), t, s)
	if err != nil {
		return nil, err
	}
	if _, err := c.OpenContext(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to open context: %w", err)
	}
	return c, nil
}

// ParseUUID parses a key identifier, "srk" names the storage root key
func ParseUUID(s string) (uuid.UUID, error) {
	if strings.EqualFold(s, "srk") {
		return ps.SRKUUID, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid key uuid %q: %w", s, err)
	}
	return id, nil
}
