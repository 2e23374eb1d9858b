// Package filter implements the filter command: load examples from a file,
// S3, HTTP, Kafka or a generator, drop rare features, and write out what remains along with its
// provenance and feature index.
package filter

import (
	"context"
	"fmt"
	"io"
	"log"
	gohttp "net/http"
	"os"
	"strconv"
	"time"

	"github.com/pilosa/dsk"
	"github.com/pilosa/dsk/aws/s3"
	"github.com/pilosa/dsk/boltdb"
	"github.com/pilosa/dsk/csv"
	"github.com/pilosa/dsk/fake"
	"github.com/pilosa/dsk/file"
	"github.com/pilosa/dsk/http"
	"github.com/pilosa/dsk/json"
	"github.com/pilosa/dsk/kafka"
	"github.com/pilosa/dsk/leveldb"
	"github.com/pilosa/dsk/pilosa"
	"github.com/pilosa/dsk/promstat"
	"github.com/pilosa/dsk/termstat"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Main contains the configuration for the filter command.
type Main struct {
	Path         string   `help:"File or directory of examples to read."`
	Format       string   `help:"Format of file and S3 examples: json or csv."`
	OutputColumn string   `help:"CSV column holding the output label."`
	WeightColumn string   `help:"CSV column holding the example weight. Blank means every weight is 1."`
	S3Bucket     string   `help:"S3 bucket name from which to read objects."`
	S3Prefix     string   `help:"Only objects in the bucket matching this prefix will be used."`
	S3Region     string   `help:"AWS region to use."`
	HTTPAddr     string   `help:"Listen for examples posted to this address."`
	Fake         int      `help:"Generate this many synthetic examples instead of reading them."`
	FakeSeed     int64    `help:"Random seed for synthetic examples."`
	KafkaHosts   []string `help:"Kafka cluster. Set to read examples from Kafka."`
	KafkaTopics  []string `help:"Topics to consume from Kafka."`
	KafkaGroup   string   `help:"Group id to use when consuming from Kafka."`
	KafkaType    string   `help:"Kafka message encoding: json or avro."`
	RegistryURL  string   `help:"Location of the Confluent schema registry for avro messages."`
	MaxExamples  int      `help:"Stop after reading this many examples. 0 reads everything (HTTP and Kafka sources require a limit)."`
	SkipBad      bool     `help:"Skip examples which can't be decoded instead of failing."`

	MinCardinality int      `help:"Features seen fewer than this many times are removed from examples."`
	Sweep          []string `help:"Additional minimum cardinalities to report on."`

	Out            string   `help:"Write the filtered examples as json to this file."`
	ProvenanceDB   string   `help:"Bolt database to store the provenance of every filtered dataset in."`
	ProvenanceName string   `help:"Name to store the provenance under."`
	IndexDir       string   `help:"Directory to write a leveldb feature index to."`
	PilosaHosts    []string `help:"Comma separated list of Pilosa hosts and ports. Set to export the filtered dataset."`
	Index          string   `help:"Pilosa index."`
	BatchSize      int      `help:"Batch size for Pilosa imports (latency/throughput tradeoff)."`
	MetricsAddr    string   `help:"Serve prometheus metrics on this address."`
	Stats          bool     `help:"Write running stats to stderr."`
	Verbose        bool     `help:"Log every removed feature."`

	stdout io.Writer
	stderr io.Writer
	server *gohttp.Server
}

// NewMain gets a new Main with the default configuration.
func NewMain() *Main {
	return &Main{
		Format:         "json",
		OutputColumn:   "output",
		KafkaTopics:    []string{"test"},
		KafkaGroup:     "dsk",
		KafkaType:      "json",
		RegistryURL:    "localhost:8081",
		MinCardinality: 1,
		Sweep:          []string{},
		ProvenanceName: "filtered",
		Index:          "dsk",
		BatchSize:      100000,
		stdout:         os.Stdout,
		stderr:         os.Stderr,
	}
}

// SetOutput sets where the summary and logs are written.
func (m *Main) SetOutput(stdout, stderr io.Writer) {
	m.stdout, m.stderr = stdout, stderr
}

// Run loads the examples, filters them and writes the configured outputs.
func (m *Main) Run() (err error) {
	logger := dsk.Logger(dsk.StdLogger{Logger: log.New(m.stderr, "", log.LstdFlags)})
	if m.Verbose {
		logger = dsk.VerboseLogger{Logger: log.New(m.stderr, "", log.LstdFlags)}
	}
	thresholds, err := m.thresholds()
	if err != nil {
		return err
	}

	stats := statters{}
	if m.Stats {
		ts := termstat.NewCollector(m.stderr, time.Second)
		defer ts.Stop()
		stats = append(stats, ts)
	}
	if m.MetricsAddr != "" {
		registry := prometheus.NewRegistry()
		stats = append(stats, promstat.NewWithRegistry(registry, "dsk"))
		m.serveMetrics(registry, logger)
	}

	src, prov, closer, err := m.source()
	if err != nil {
		return errors.Wrap(err, "getting source")
	}
	if closer != nil {
		defer func() {
			if cerr := closer.Close(); cerr != nil && err == nil {
				err = errors.Wrap(cerr, "closing source")
			}
		}()
	}

	loaded, err := dsk.Load(src, prov,
		dsk.OptLoadLogger(logger),
		dsk.OptLoadStatter(stats),
		dsk.OptMaxExamples(m.MaxExamples),
		dsk.OptSkipBad(m.SkipBad))
	if err != nil {
		return errors.Wrap(err, "loading examples")
	}

	datasets, err := dsk.Sweep(context.Background(), loaded, thresholds, dsk.OptLogger(logger), dsk.OptStatter(stats))
	if err != nil {
		return errors.Wrap(err, "filtering")
	}
	fmt.Fprintf(m.stdout, "loaded %d examples with %d features from %s\n", loaded.Len(), loaded.FeatureMap().Size(), prov.Location())
	for _, d := range datasets {
		fmt.Fprintf(m.stdout, "min-cardinality %d: %d examples (%d removed), %d features (%d removed)\n",
			d.MinCardinality(), d.Len(), d.NumExamplesRemoved(), d.FeatureMap().Size(), len(d.Removed()))
	}

	if m.ProvenanceDB != "" {
		if err := m.storeProvenance(datasets); err != nil {
			return errors.Wrap(err, "storing provenance")
		}
	}
	return m.write(datasets[0], logger, stats)
}

func (m *Main) thresholds() ([]int, error) {
	ret := []int{m.MinCardinality}
	for _, s := range m.Sweep {
		min, err := strconv.Atoi(s)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing sweep threshold '%s'", s)
		}
		ret = append(ret, min)
	}
	return ret, nil
}

// source gets the configured source of examples along with its provenance. The
// io.Closer is non-nil if the source must be closed.
func (m *Main) source() (dsk.Source, *dsk.DataSourceProvenance, io.Closer, error) {
	set := 0
	for _, b := range []bool{m.Path != "", m.S3Bucket != "", m.HTTPAddr != "", len(m.KafkaHosts) > 0, m.Fake > 0} {
		if b {
			set++
		}
	}
	if set != 1 {
		return nil, nil, nil, errors.New("exactly one of path, s3-bucket, http-addr, kafka-hosts and fake must be set")
	}
	if (m.HTTPAddr != "" || len(m.KafkaHosts) > 0) && m.MaxExamples <= 0 {
		return nil, nil, nil, errors.New("max-examples must be set to read from http or kafka")
	}

	switch {
	case m.Fake > 0:
		fs := fake.NewSource(m.FakeSeed, uint64(m.Fake))
		return fs, dsk.NewDataSourceProvenance(fmt.Sprintf("fake seed %d", m.FakeSeed), fs.Location()), nil, nil
	case m.HTTPAddr != "":
		hs, err := http.NewJSONSource(http.WithAddr(m.HTTPAddr))
		if err != nil {
			return nil, nil, nil, errors.Wrap(err, "starting http source")
		}
		return hs, dsk.NewDataSourceProvenance("http json", hs.Location()), hs, nil
	case len(m.KafkaHosts) > 0:
		ks := kafka.NewSource()
		ks.Hosts = m.KafkaHosts
		ks.Topics = m.KafkaTopics
		ks.Group = m.KafkaGroup
		ks.Type = m.KafkaType
		ks.RegistryURL = m.RegistryURL
		ks.MaxMsgs = m.MaxExamples
		if err := ks.Open(); err != nil {
			return nil, nil, nil, errors.Wrap(err, "opening kafka source")
		}
		return ks, dsk.NewDataSourceProvenance("kafka "+m.KafkaType, ks.Location()), ks, nil
	case m.S3Bucket != "":
		rs, err := s3.NewRawSource(m.S3Region, m.S3Bucket, m.S3Prefix)
		if err != nil {
			return nil, nil, nil, errors.Wrap(err, "getting s3 source")
		}
		src, err := m.decoder(rs)
		return src, dsk.NewDataSourceProvenance("s3 "+m.Format, rs.Location()), nil, err
	default:
		rs, err := file.NewRawSource(m.Path)
		if err != nil {
			return nil, nil, nil, errors.Wrap(err, "getting file source")
		}
		src, err := m.decoder(rs)
		return src, dsk.NewDataSourceProvenance("file "+m.Format, m.Path), nil, err
	}
}

func (m *Main) decoder(rs dsk.RawSource) (dsk.Source, error) {
	switch m.Format {
	case "json":
		return json.NewSourceFromRawSource(rs), nil
	case "csv":
		opts := []csv.Option{csv.WithOutputColumn(m.OutputColumn)}
		if m.WeightColumn != "" {
			opts = append(opts, csv.WithWeightColumn(m.WeightColumn))
		}
		return csv.NewSource(rs, opts...), nil
	default:
		return nil, errors.Errorf("unknown format '%s'", m.Format)
	}
}

// storeProvenance stores the provenance of the first dataset under
// ProvenanceName and the rest under ProvenanceName-<threshold>.
func (m *Main) storeProvenance(datasets []*dsk.MinimumCardinalityDataset) error {
	store, err := boltdb.Open(m.ProvenanceDB)
	if err != nil {
		return err
	}
	defer store.Close()
	for i, d := range datasets {
		name := m.ProvenanceName
		if i > 0 {
			name = fmt.Sprintf("%s-%d", m.ProvenanceName, d.MinCardinality())
		}
		if err := store.Put(name, d.Provenance()); err != nil {
			return errors.Wrapf(err, "putting '%s'", name)
		}
	}
	return store.Close()
}

func (m *Main) write(d *dsk.MinimumCardinalityDataset, logger dsk.Logger, stats dsk.Statter) error {
	if m.Out != "" {
		f, err := os.Create(m.Out)
		if err != nil {
			return errors.Wrap(err, "creating output file")
		}
		n, err := json.WriteDataset(f, d)
		if err != nil {
			f.Close()
			return errors.Wrapf(err, "writing examples to '%s'", m.Out)
		}
		if err := f.Close(); err != nil {
			return errors.Wrap(err, "closing output file")
		}
		fmt.Fprintf(m.stdout, "wrote %d examples to %s\n", n, m.Out)
	}
	if m.IndexDir != "" {
		idx, err := leveldb.Open(m.IndexDir)
		if err != nil {
			return errors.Wrap(err, "opening feature index")
		}
		err = idx.Write(d.FeatureIndex())
		if cerr := idx.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return errors.Wrap(err, "writing feature index")
		}
		fmt.Fprintf(m.stdout, "wrote %d features to %s\n", d.FeatureIndex().Size(), m.IndexDir)
	}
	if len(m.PilosaHosts) > 0 {
		e := pilosa.NewExporter(m.PilosaHosts, m.Index)
		e.BatchSize = m.BatchSize
		e.Log = logger
		e.Stats = stats
		n, err := e.Export(d)
		if err != nil {
			return errors.Wrap(err, "exporting to pilosa")
		}
		fmt.Fprintf(m.stdout, "exported %d columns to pilosa index %s\n", n, m.Index)
	}
	return nil
}

func (m *Main) serveMetrics(registry *prometheus.Registry, logger dsk.Logger) {
	mux := gohttp.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	m.server = &gohttp.Server{Addr: m.MetricsAddr, Handler: mux}
	go func() {
		err := m.server.ListenAndServe()
		if err != nil && err != gohttp.ErrServerClosed {
			logger.Printf("serving metrics: %v", err)
		}
	}()
}

// Close stops serving metrics.
func (m *Main) Close() error {
	if m.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.server.Shutdown(ctx)
}

// statters sends stats to each of its members.
type statters []dsk.Statter

func (s statters) Count(name string, value int64, rate float64, tags ...string) {
	for _, st := range s {
		st.Count(name, value, rate, tags...)
	}
}

func (s statters) Gauge(name string, value float64, rate float64, tags ...string) {
	for _, st := range s {
		st.Gauge(name, value, rate, tags...)
	}
}

func (s statters) Histogram(name string, value float64, rate float64, tags ...string) {
	for _, st := range s {
		st.Histogram(name, value, rate, tags...)
	}
}

func (s statters) Set(name string, value string, rate float64, tags ...string) {
	for _, st := range s {
		st.Set(name, value, rate, tags...)
	}
}

func (s statters) Timing(name string, value time.Duration, rate float64, tags ...string) {
	for _, st := range s {
		st.Timing(name, value, rate, tags...)
	}
}
