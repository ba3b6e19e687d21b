//nolint
package capwriter

var (
	NewGlobalHeader = newGlobalHeader
	NewRecordHeader = newRecordHeader
)

func (x GlobalHeader) Marshal() []byte { return x.marshal() }
func (x RecordHeader) Marshal() []byte { return x.marshal() }

func WriteAll(w *Writer, buf []byte) error {
	_, err := w.writeAll(buf)
	return err
}

func BindForTest(w *Writer, sink Sink) {
	w.sink = sink
}
