package offsets

import (
	_ "embed"
	"sync"
)

//go:embed data/interfaces.yaml
var embeddedTable []byte

var embedded = sync.OnceValues(func() (*Table, error) {
	return ParseYAML(embeddedTable)
})

// Embedded returns the table compiled into the binary. It is parsed once;
// every call returns the same *Table.
func Embedded() (*Table, error) {
	return embedded()
}
