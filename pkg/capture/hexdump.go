package capture

import (
	"bufio"
	"fmt"
	"io"
)

const hexDumpSeparator = "---------------------------"

// DumpHex prints data 16 bytes per line, each line prefixed by its offset,
// with a wider gap after the 8th byte.
func DumpHex(w io.Writer, data []byte) error {
	bw := bufio.NewWriter(w)

	for i, b := range data {
		switch {
		case i == 0:
			fmt.Fprintf(bw, "%04x\t", i)
		case i%16 == 0:
			fmt.Fprintf(bw, "\n%04x\t", i)
		case i%8 == 0:
			bw.WriteString("\t")
		}
		fmt.Fprintf(bw, "%02x ", b)
	}

	bw.WriteString("\n" + hexDumpSeparator + "\n")
	return bw.Flush()
}
