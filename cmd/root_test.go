package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pilosa/dsk/test"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func TestSetAllConfig(t *testing.T) {
	dir := t.TempDir()
	conf := filepath.Join(dir, "dsk.toml")
	err := os.WriteFile(conf, []byte("index = \"fromfile\"\npilosa-hosts = [\"a:1\", \"b:2\"]\nmin-cardinality = 3\n"), 0600)
	test.ErrNil(t, err, "writing config")

	tests := []struct {
		name     string
		args     []string
		env      map[string]string
		expMin   int
		expIndex string
		expHosts []string
	}{
		{
			name:     "defaults",
			expMin:   1,
			expIndex: "dsk",
			expHosts: []string{},
		},
		{
			name:     "env",
			env:      map[string]string{"DSK_MIN_CARDINALITY": "5", "DSK_PILOSA_HOSTS": "c:3"},
			expMin:   5,
			expIndex: "dsk",
			expHosts: []string{"c:3"},
		},
		{
			name:     "file",
			args:     []string{"--config", conf},
			expMin:   3,
			expIndex: "fromfile",
			expHosts: []string{"a:1", "b:2"},
		},
		{
			name:     "flag beats env and file",
			args:     []string{"--config", conf, "--min-cardinality", "7"},
			env:      map[string]string{"DSK_MIN_CARDINALITY": "5"},
			expMin:   7,
			expIndex: "fromfile",
			expHosts: []string{"a:1", "b:2"},
		},
	}

	for _, tst := range tests {
		t.Run(tst.name, func(t *testing.T) {
			for k, v := range tst.env {
				t.Setenv(k, v)
			}
			var min int
			var index, config string
			var hosts []string
			flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
			flags.IntVar(&min, "min-cardinality", 1, "")
			flags.StringVar(&index, "index", "dsk", "")
			flags.StringSliceVar(&hosts, "pilosa-hosts", []string{}, "")
			flags.StringVarP(&config, "config", "c", "", "")
			test.ErrNil(t, flags.Parse(tst.args), "parsing flags")

			err := setAllConfig(viper.New(), flags, "DSK")
			test.ErrNil(t, err, "setting config")
			test.MustBe(t, min, tst.expMin, "min-cardinality")
			test.MustBe(t, index, tst.expIndex, "index")
			test.MustBe(t, hosts, tst.expHosts, "pilosa-hosts")
		})
	}
}

func TestRootCommand(t *testing.T) {
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	rc := NewRootCommand(nil, stdout, stderr)
	names := map[string]bool{}
	for _, c := range rc.Commands() {
		names[c.Name()] = true
	}
	if !names["filter"] || !names["provenance"] {
		t.Fatalf("expected filter and provenance subcommands, got %v", names)
	}
	filterCmd, _, err := rc.Find([]string{"filter"})
	test.ErrNil(t, err, "finding filter")
	for _, flag := range []string{"min-cardinality", "path", "kafka-hosts", "metrics-addr"} {
		if filterCmd.Flags().Lookup(flag) == nil {
			t.Errorf("filter has no flag '%s'", flag)
		}
	}
}

func TestSetAllConfigErrors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.toml")
	test.ErrNil(t, os.WriteFile(bad, []byte("min-cardinality = \"lots\"\n"), 0600), "writing config")

	tests := []struct {
		name   string
		config string
		expMsg string
	}{
		{name: "missing file", config: filepath.Join(dir, "nope.toml"), expMsg: "reading config file"},
		{name: "bad value", config: bad, expMsg: "setting 'min-cardinality'"},
	}
	for _, tst := range tests {
		t.Run(tst.name, func(t *testing.T) {
			var min int
			var config string
			flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
			flags.IntVar(&min, "min-cardinality", 1, "")
			flags.StringVarP(&config, "config", "c", "", "")
			test.ErrNil(t, flags.Parse([]string{"--config", tst.config}), "parsing flags")

			err := setAllConfig(viper.New(), flags, EnvPrefix)
			if err == nil || !strings.Contains(err.Error(), tst.expMsg) {
				t.Fatalf("expected error containing '%s', got %v", tst.expMsg, err)
			}
		})
	}
}
