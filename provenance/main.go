// Package provenance implements the provenance command, which shows the
// provenance records stored by the filter command.
package provenance

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/pilosa/dsk"
	"github.com/pilosa/dsk/boltdb"
	"github.com/pkg/errors"
)

// Main contains the configuration for the provenance command.
type Main struct {
	ProvenanceDB string `help:"Bolt database the provenance was stored in."`
	Name         string `help:"Name of the provenance to show. Blank lists every name."`
	Flat         bool   `help:"Print one key per line instead of json."`

	stdout io.Writer
}

// NewMain gets a new Main with the default configuration.
func NewMain() *Main {
	return &Main{
		ProvenanceDB: "provenance.db",
		stdout:       os.Stdout,
	}
}

// SetOutput sets where output is written.
func (m *Main) SetOutput(stdout io.Writer) {
	m.stdout = stdout
}

// Run prints the requested provenance.
func (m *Main) Run() error {
	if _, err := os.Stat(m.ProvenanceDB); err != nil {
		return errors.Wrap(err, "checking provenance db")
	}
	store, err := boltdb.Open(m.ProvenanceDB)
	if err != nil {
		return errors.Wrap(err, "opening provenance db")
	}
	defer store.Close()

	if m.Name == "" {
		names, err := store.Names()
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Fprintln(m.stdout, name)
		}
		return nil
	}

	rec, err := store.Record(m.Name)
	if err != nil {
		return err
	}
	// Stored records must still rehydrate.
	p, err := dsk.Rehydrate(rec)
	if err != nil {
		return errors.Wrapf(err, "rehydrating '%s'", m.Name)
	}
	if m.Flat {
		for _, e := range rec {
			fmt.Fprintf(m.stdout, "%s\t%s\t%v\n", e.Key, e.Value.XSDType(), e.Value)
		}
		fmt.Fprintf(m.stdout, "hash\t%016x\n", dsk.HashProvenance(p))
		return nil
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding record")
	}
	_, err = fmt.Fprintf(m.stdout, "%s\n", data)
	return err
}
