package inspect

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ValentinKolb/tcsd/lib/ps"
	"github.com/spf13/cobra"
)

// groupsPerLine is the number of 4 byte groups printed per hex dump line
const groupsPerLine = 4

var (
	// InspectCmd dumps a persistent store file
	InspectCmd = &cobra.Command{
		Use:   "inspect [file]",
		Short: "Print the contents of a persistent store file",
		Long: `Print the header and every key record of a persistent store file in hexadecimal.
Both the legacy and the versioned dialect are understood. The command fails if the
file cannot be read completely or is malformed.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE:         run,
	}
)

func run(cmd *cobra.Command, args []string) error {
	return Dump(cmd.OutOrStdout(), args[0])
}

// Dump writes a human readable dump of the store at path to w.
// Records are printed as they are decoded, so a malformed file yields the records
// up to the defect followed by the error.
func Dump(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	p := &printer{w: w}
	p.line("filename: %s", path)

	dec, err := ps.NewDecoder(f)
	if err != nil {
		return err
	}

	header := dec.Header()
	if header.Dialect == ps.DialectVersioned {
		p.line("version:        %d", header.Version)
	} else {
		p.line("version:        0 (%s)", header.Dialect)
	}
	p.line("number of keys: %d", header.KeyCount)

	i := 0
	for rec, err := range dec.Records() {
		if err != nil {
			return fmt.Errorf("key %d: %w", i, err)
		}
		p.record(i, header.Dialect, rec)
		i++
	}

	if err := dec.CheckTrailing(); err != nil {
		if errors.Is(err, ps.ErrTrailingData) {
			p.line("trailing data after key %d", i-1)
		}
		return err
	}
	return p.err
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// printer keeps the first write error, so the dump code does not check every line
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...interface{}) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func (p *printer) line(format string, args ...interface{}) {
	p.printf("PS "+format+"\n", args...)
}

func (p *printer) record(i int, dialect ps.Dialect, rec ps.KeyRecord) {
	p.printf("PS uuid%d: ", i)
	p.hex(rec.UUID[:])
	p.printf("PS parent uuid%d: ", i)
	p.hex(rec.ParentUUID[:])

	p.line("pub_data_size%d: %d", i, len(rec.PubData))
	p.line("blob_size%d: %d", i, len(rec.Blob))
	if dialect == ps.DialectVersioned {
		p.line("vendor_data_size%d: %d", i, len(rec.VendorData))
	}
	p.line("cache_flags%d: %02x", i, rec.CacheFlags)

	p.line("pub_data%d:", i)
	p.hex(rec.PubData)
	p.line("blob%d:", i)
	p.hex(rec.Blob)
	if dialect == ps.DialectVersioned && len(rec.VendorData) > 0 {
		p.line("vendor_data%d:", i)
		p.hex(rec.VendorData)
	}
}

// hex prints data in groups of 4 bytes, groupsPerLine groups per line.
// An empty payload still ends the current line.
func (p *printer) hex(data []byte) {
	if len(data) == 0 {
		p.printf("\n")
		return
	}
	for len(data) > 0 {
		for g := 0; g < groupsPerLine && len(data) > 0; g++ {
			n := min(4, len(data))
			p.printf("%x ", data[:n])
			data = data[n:]
		}
		p.printf("\n")
	}
}
